package expert

// Prompts holds the templates rendered by the experts. Templates use
// text/template syntax; the available fields are listed per template.
type Prompts struct {
	// Coordinator receives .user_input.
	Coordinator string
	// Router receives .directive.
	Router string
	// RefineQuery receives .manager_response.
	RefineQuery string
	// SelectURL receives .manager_response and .results.
	SelectURL string
}

// DefaultPrompts returns the built-in templates.
func DefaultPrompts() Prompts {
	return Prompts{
		Coordinator: defaultCoordinatorPrompt,
		Router:      defaultRouterPrompt,
		RefineQuery: defaultRefineQueryPrompt,
		SelectURL:   defaultSelectURLPrompt,
	}
}

// merge fills empty fields from DefaultPrompts.
func (p Prompts) merge() Prompts {
	d := DefaultPrompts()
	if p.Coordinator == "" {
		p.Coordinator = d.Coordinator
	}
	if p.Router == "" {
		p.Router = d.Router
	}
	if p.RefineQuery == "" {
		p.RefineQuery = d.RefineQuery
	}
	if p.SelectURL == "" {
		p.SelectURL = d.SelectURL
	}
	return p
}

const defaultCoordinatorPrompt = `You are the Meta-Expert, the manager of a small team of experts.
You never answer the user yourself. Instead you write one instruction for the expert who will.

If the request can be answered from general knowledge, instruct the expert to answer it directly.
If the request needs current or external information (news, weather, prices, recent events, a
specific web page), instruct the expert to look it up on the internet and say what to look for.

Write the instruction as plain text addressed to the expert.`

const defaultRouterPrompt = `Given these instructions from your manager.

# Response from Manager
{{ .directive }}

Return the following JSON.

{"tool_agent": true or false}

tool_agent is true if the response from your manager suggests a tool will be necessary, otherwise false.
Remember tool_agent is a boolean value, and tools are only necessary to search the internet.`

const defaultRefineQueryPrompt = `Given the response from your manager.

# Response from Manager
{{ .manager_response }}

Return the following JSON.

{"search_query": "the refined search engine query that aligns with the response from your manager"}`

const defaultSelectURLPrompt = `Given the search results and the instructions from your manager, select the best URL.

# Manager Instructions
{{ .manager_response }}

# Search Results
{{ json .results }}

Return the following JSON.

{"best_url": "the URL from the search results that aligns most with the instructions from your manager"}

best_url must be copied exactly from one of the search results.`
