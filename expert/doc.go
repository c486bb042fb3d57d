// Package expert implements the nodes of a metaexpert run:
//
//   - Coordinator turns the user input into a directive
//   - Router classifies the directive as needing a web lookup or not
//   - DirectResponder answers the directive from the model alone
//   - ToolUser answers, then refines a query, searches, picks a URL and fetches it
//
// Every expert implements core.Expert. The generate-and-record step shared by
// the Coordinator, the DirectResponder and the first ToolUser step lives in
// responder; experts compose it rather than inherit it.
package expert
