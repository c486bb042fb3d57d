package core

import "fmt"

// ParseDecision normalises a router verdict. The only accepted spellings are
// the booleans themselves and their "True"/"true" and "False"/"false" forms.
// Everything else, including a missing value, yields ErrRoutingAmbiguous.
func ParseDecision(v any) (bool, error) {
	switch d := v.(type) {
	case bool:
		return d, nil
	case string:
		switch d {
		case "True", "true":
			return true, nil
		case "False", "false":
			return false, nil
		}
	case nil:
		return false, fmt.Errorf("%w: missing value", ErrRoutingAmbiguous)
	}

	return false, fmt.Errorf("%w: unsupported value %v (%T)", ErrRoutingAmbiguous, v, v)
}
