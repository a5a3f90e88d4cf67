package v1alpha1

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/mozilla-ai/lumigator/internal/handlers/v1alpha1/mappers"
)

// Health always answers 200, the state of each dependency is part of the body.
func (h *ServiceHandler) Health(w http.ResponseWriter, r *http.Request) {
	_ = render.Render(w, r, mappers.HealthToApi(h.healthSrv.Check(r.Context())))
}
