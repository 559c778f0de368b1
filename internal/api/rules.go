package api

import (
	"errors"
	"net/http"

	"github.com/nerrad567/pihome/internal/automation"
	"github.com/nerrad567/pihome/internal/entity"
)

// ruleRequest is the body of rule create and update requests.
// Conditions use the stored wire form: [[left, operator, right], ...].
type ruleRequest struct {
	Label      *string             `json:"label"`
	Enabled    *bool               `json:"enabled"`
	Conditions *[]entity.Condition `json:"conditions"`
}

// apply copies the set fields of req onto rule.
func (req ruleRequest) apply(rule *entity.Rule) {
	if req.Label != nil {
		rule.Label = *req.Label
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	if req.Conditions != nil {
		rule.Conditions = *req.Conditions
	}
}

// handleListRules returns all rules ordered by id.
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.registry.List(r.Context(), entity.KindRule)
	if err != nil {
		s.writeEntityError(w, err, "rules")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": views(rules), "count": len(rules)})
}

// handleGetRule returns a single rule with the engine's last known state.
func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	rule, err := s.registry.GetRule(r.Context(), id)
	if err != nil {
		s.writeEntityError(w, err, "rule")
		return
	}

	view := rule.ClientView()
	if s.engine != nil {
		if satisfied, known := s.engine.State(id); known {
			view.Set("satisfied", satisfied)
		}
	}
	writeJSON(w, http.StatusOK, view)
}

// handleCreateRule creates a rule. New rules are enabled unless the body
// says otherwise.
func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rule := entity.NewRule("")
	req.apply(rule)

	if err := s.registry.Create(r.Context(), rule); err != nil {
		s.writeEntityError(w, err, "rule")
		return
	}
	writeJSON(w, http.StatusCreated, rule.ClientView())
}

// handleUpdateRule partially updates a rule. A conditions field replaces
// the whole list.
func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	existing, err := s.registry.GetRule(r.Context(), id)
	if err != nil {
		s.writeEntityError(w, err, "rule")
		return
	}

	var req ruleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.apply(existing)

	if err := s.registry.Update(r.Context(), existing); err != nil {
		s.writeEntityError(w, err, "rule")
		return
	}
	writeJSON(w, http.StatusOK, existing.ClientView())
}

// handleDeleteRule removes a rule.
func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := s.registry.Delete(r.Context(), entity.KindRule, id); err != nil {
		s.writeEntityError(w, err, "rule")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleEvaluateRule evaluates a rule now and returns the per-condition
// breakdown. Disabled rules are evaluated too.
func (s *Server) handleEvaluateRule(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	rule, err := s.registry.GetRule(ctx, id)
	if err != nil {
		s.writeEntityError(w, err, "rule")
		return
	}

	ev, err := s.evaluator.Inspect(ctx, rule)
	if err != nil {
		s.writeEvaluationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// handleListOperators returns the operator names rules may use.
func (s *Server) handleListOperators(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"operators": s.evaluator.Operators().Names()})
}

// writeEvaluationError reports a failed evaluation. A rule that cannot be
// evaluated as written is a 422; hardware faults and timeouts keep the
// statuses writeEntityError gives them.
func (s *Server) writeEvaluationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entity.ErrEntityNotFound),
		errors.Is(err, automation.ErrUnknownOperator),
		errors.Is(err, automation.ErrRuleCycle):
		writeError(w, http.StatusUnprocessableEntity, ErrCodeEvaluationFailed, err.Error())
	default:
		s.writeEntityError(w, err, "rule evaluation")
	}
}
