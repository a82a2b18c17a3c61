package llm

import (
	"encoding/json"
	"strings"

	"github.com/okian/cadhub/internal/domain/model"
)

type promptParam struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// BuildSystemPrompt renders the instruction that embeds the schema and
// the interpretation rules for vague quantifiers.
func BuildSystemPrompt(schema model.Schema) string {
	params := make([]promptParam, 0, len(schema))
	for _, p := range schema {
		params = append(params, promptParam{Name: p.Name, Value: p.Value, Min: p.Min, Max: p.Max})
	}
	listing, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		listing = []byte("[]")
	}

	var b strings.Builder
	b.WriteString("You control a parametric 3D model.\n\n")
	b.WriteString("AVAILABLE PARAMETERS:\n")
	b.Write(listing)
	b.WriteString("\n\nINTERPRETATION:\n")
	b.WriteString("- \"slightly\" = 10-20% change of the current value\n")
	b.WriteString("- \"more/increase\" = 25-50% change\n")
	b.WriteString("- \"much/significantly\" = 50-100% change\n")
	b.WriteString("- \"maximize/minimize\" = set to max/min\n")
	b.WriteString("- stay within each parameter's min and max\n\n")
	b.WriteString("Return ONLY a JSON object with parameter names and new values.\n")
	b.WriteString("Use {} if no changes apply.\n")
	return b.String()
}
