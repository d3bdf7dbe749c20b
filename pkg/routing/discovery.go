package routing

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"

	"mercator-hq/conduit/pkg/providers"
)

// Deployment is one backend deployment as listed by the deployments API.
type Deployment struct {
	// ID is the deployment ID used in inference URLs.
	ID string

	// Model is the model name the deployment serves.
	Model string

	// Status is the deployment status, e.g. "RUNNING".
	Status string
}

// Running reports whether the deployment accepts inference requests.
// Deployments without a status are assumed to be running.
func (d Deployment) Running() bool {
	return d.Status == "" || strings.EqualFold(d.Status, "RUNNING")
}

// discover lists the backend deployments.
func (r *ModelRouter) discover(ctx context.Context) ([]Deployment, error) {
	token, err := r.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	req := &providers.VendorRequest{
		Method: "GET",
		URL:    providers.JoinURL(r.cfg.BaseURL, "/v2/lm/deployments"),
		Headers: map[string]string{
			"Authorization":     "Bearer " + token,
			"AI-Resource-Group": r.cfg.ResourceGroup,
			"Accept":            "application/json",
		},
	}
	body, err := r.client.SendAndRead(ctx, "backend-deployments", req)
	if err != nil {
		return nil, err
	}
	return ParseDeployments(body), nil
}

// ParseDeployments extracts deployments from a deployments API response.
// Entries without an ID or model name are skipped.
func ParseDeployments(body []byte) []Deployment {
	var out []Deployment
	gjson.GetBytes(body, "resources").ForEach(func(_, res gjson.Result) bool {
		model := res.Get("details.resources.backend_details.model.name").String()
		if model == "" {
			model = res.Get("details.resources.backendDetails.model.name").String()
		}
		d := Deployment{
			ID:     res.Get("id").String(),
			Model:  model,
			Status: res.Get("status").String(),
		}
		if d.ID != "" && d.Model != "" {
			out = append(out, d)
		}
		return true
	})
	return out
}
