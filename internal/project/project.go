// Package project resolves which projects an authenticated user may see and
// shapes them for the API.
package project

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/alecgard/portico/internal/store"
)

// Project is a project row with all stored attributes plus the derived
// "active" and "workers" fields.
type Project map[string]any

// RoleAdmin is the only role allowed to list projects.
const RoleAdmin = "admin"

// decode turns a stored row into a Project. Numbers are kept as json.Number
// so large identifiers survive untouched.
func decode(row store.ProjectRow) (Project, error) {
	p := Project{}
	dec := json.NewDecoder(bytes.NewReader(row.Attrs))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decoding project %s: %w", row.ID, err)
	}
	return p, nil
}

// Normalize returns a copy of p with "active" and "workers" always set.
// An explicit boolean "active" wins over status == "active"; an explicit
// finite numeric "workers" wins over the tallied staff count.
func Normalize(p Project, staffCount int) Project {
	out := make(Project, len(p)+2)
	for k, v := range p {
		out[k] = v
	}

	if active, ok := p["active"].(bool); ok {
		out["active"] = active
	} else {
		status, _ := p["status"].(string)
		out["active"] = status == "active"
	}

	if w, ok := p["workers"]; ok && isFiniteNumber(w) {
		out["workers"] = w
	} else {
		out["workers"] = staffCount
	}
	return out
}

func isFiniteNumber(v any) bool {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := strconv.ParseFloat(n.String(), 64)
		if err != nil {
			return false
		}
		f = parsed
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int, int32, int64, uint, uint32, uint64:
		return true
	default:
		return false
	}
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// dedupe keeps the first row for each project id, preserving order.
func dedupe(rows []store.ProjectRow) []store.ProjectRow {
	seen := make(map[string]struct{}, len(rows))
	out := make([]store.ProjectRow, 0, len(rows))
	for _, r := range rows {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}

// tally counts occurrences of each project id.
func tally(ids []string) map[string]int {
	counts := make(map[string]int, len(ids))
	for _, id := range ids {
		counts[id]++
	}
	return counts
}
