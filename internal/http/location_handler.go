package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"wisefido-records/internal/location"
)

// Trees hands out the location tree for a locale.
type Trees interface {
	Get(ctx context.Context, locale string) (*location.Tree, error)
}

type LocationHandler struct {
	trees         Trees
	defaultLocale string
}

func NewLocationHandler(trees Trees, defaultLocale string) *LocationHandler {
	return &LocationHandler{trees: trees, defaultLocale: defaultLocale}
}

type nodeJSON struct {
	UUID         string     `json:"uuid"`
	Name         string     `json:"name"`
	Depth        int        `json:"depth"`
	PatientCount int        `json:"patient_count"`
	DirectCount  int        `json:"direct_count"`
	Children     []nodeJSON `json:"children,omitempty"`
}

type locationJSON struct {
	Node nodeJSON  `json:"node"`
	Zone *nodeJSON `json:"zone,omitempty"`
	Tent *nodeJSON `json:"tent,omitempty"`
}

func toNode(n *location.Node, locale string, recurse bool) nodeJSON {
	name, _ := n.Name(locale)
	out := nodeJSON{
		UUID:         n.UUID(),
		Name:         name,
		Depth:        n.Depth(),
		PatientCount: n.PatientCount(),
		DirectCount:  n.DirectPatientCount(),
	}
	if recurse {
		for _, c := range n.Children() {
			out.Children = append(out.Children, toNode(c, locale, true))
		}
	}
	return out
}

func (h *LocationHandler) locale(r *http.Request) string {
	if l := r.URL.Query().Get("locale"); l != "" {
		return l
	}
	return h.defaultLocale
}

// GetTree handles GET /locations. With ?depth=N it returns the sorted nodes at that depth.
func (h *LocationHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	locale := h.locale(r)
	tree, err := h.trees.Get(r.Context(), locale)
	if err != nil {
		writeError(w, err)
		return
	}
	if d := r.URL.Query().Get("depth"); d != "" {
		depth := parseInt(d, -1)
		if depth < 0 {
			writeError(w, fmt.Errorf("%w: %q", location.ErrInvalidDepth, d))
			return
		}
		out := []nodeJSON{}
		for _, n := range tree.NodesAtDepth(depth) {
			out = append(out, toNode(n, locale, false))
		}
		writeJSON(w, http.StatusOK, Ok(out))
		return
	}
	writeJSON(w, http.StatusOK, Ok(toNode(tree.Root(), locale, true)))
}

// GetLocation handles GET /locations/{uuid}.
func (h *LocationHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	uuid := strings.Trim(strings.TrimPrefix(r.URL.Path, apiPrefix+"/locations/"), "/")
	if uuid == "" {
		h.GetTree(w, r)
		return
	}
	locale := h.locale(r)
	tree, err := h.trees.Get(r.Context(), locale)
	if err != nil {
		writeError(w, err)
		return
	}
	n := tree.NodeByUUID(uuid)
	if n == nil {
		writeError(w, fmt.Errorf("%w: %s", location.ErrUnknownLocation, uuid))
		return
	}
	out := locationJSON{Node: toNode(n, locale, true)}
	if z := tree.ZoneOf(uuid); z != nil {
		zone := toNode(z, locale, false)
		out.Zone = &zone
	}
	if t := tree.TentOf(uuid); t != nil {
		tent := toNode(t, locale, false)
		out.Tent = &tent
	}
	writeJSON(w, http.StatusOK, Ok(out))
}
