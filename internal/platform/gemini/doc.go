// Package gemini implements the orient planner on Google's Gemini API.
//
// This package is an infrastructure adapter: the service layer only sees the
// service.Planner interface, and this package translates between task titles,
// the model's JSON answer and domain.OrientContent.
//
// Key components:
//
// 1. Planner:
//   - Renders the ranking prompt from an embedded template
//   - Calls the model with a JSON response type
//   - Converts the ranked list into next tasks
//
// 2. Error Handling:
//   - Retries transient API failures with exponential backoff and jitter
//   - Treats blocked or unparseable answers as permanent failures
//
// The package depends on google.golang.org/genai for the API client.
package gemini
