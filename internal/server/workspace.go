package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/relaycore/channel-console/internal/channel"
	errordefs "github.com/relaycore/channel-console/internal/errors"
	"github.com/relaycore/channel-console/internal/model"
	"github.com/relaycore/channel-console/internal/storage"
	"github.com/relaycore/channel-console/internal/view"
	"github.com/relaycore/channel-console/internal/workspace"
)

func (m *Mux) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	m.writeSuccess(w, http.StatusOK, m.deps.Workspaces.Get(subjectOf(r)).Snapshot())
}

type loadRequest struct {
	ChannelID string `json:"channelId" validate:"required"`
	// RestoreDraft replaces the loaded document with the caller's unsaved
	// draft when one exists.
	RestoreDraft bool `json:"restoreDraft"`
}

func (m *Mux) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req loadRequest
	if err := m.decode(r, &req); err != nil {
		m.fail(w, r, err)
		return
	}
	subject := subjectOf(r)
	s, err := m.deps.Workspaces.Load(r.Context(), subject, req.ChannelID)
	if err != nil {
		m.failUpstream(w, r, err)
		return
	}
	if req.RestoreDraft && m.deps.Journal != nil {
		draft, err := m.deps.Journal.Draft(r.Context(), subject, req.ChannelID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
		case err != nil:
			m.fail(w, r, err)
			return
		default:
			s, err = m.deps.Workspaces.Get(subject).Update(r.Context(), func(*model.Channel) (*model.Channel, error) {
				return model.Hydrate(draft), nil
			})
			if err != nil {
				m.fail(w, r, err)
				return
			}
		}
	}
	m.writeSuccess(w, http.StatusOK, s)
}

type actionRequest struct {
	Type       string          `json:"type" validate:"required"`
	MetaDataID *int64          `json:"metaDataId,omitempty" validate:"omitempty,min=0"`
	Value      json.RawMessage `json:"value"`
}

func (m *Mux) handleAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := m.decode(r, &req); err != nil {
		m.fail(w, r, err)
		return
	}
	s, err := m.deps.Workspaces.Get(subjectOf(r)).Apply(r.Context(), channel.Action{
		Type:       req.Type,
		MetaDataID: req.MetaDataID,
		Value:      req.Value,
	})
	if err != nil {
		m.fail(w, r, err)
		return
	}
	m.writeSuccess(w, http.StatusOK, s)
}

type sourceTypeRequest struct {
	Type string `json:"type" validate:"required"`
}

func (m *Mux) handleSourceType(w http.ResponseWriter, r *http.Request) {
	var req sourceTypeRequest
	if err := m.decode(r, &req); err != nil {
		m.fail(w, r, err)
		return
	}
	s, err := m.deps.Workspaces.Get(subjectOf(r)).SetSourceType(r.Context(), model.SourceKind(req.Type))
	if err != nil {
		m.fail(w, r, err)
		return
	}
	m.writeSuccess(w, http.StatusOK, s)
}

// handleSave persists the document. A rejected save still reports the
// workspace so the client sees the persist state.
func (m *Mux) handleSave(w http.ResponseWriter, r *http.Request) {
	s, err := m.deps.Workspaces.Save(r.Context(), subjectOf(r))
	if err != nil {
		m.failUpstream(w, r, err)
		return
	}
	m.writeSuccess(w, http.StatusOK, s)
}

// target reads the metaDataId query parameter. The source is the default.
func target(r *http.Request) (int64, error) {
	v := r.URL.Query().Get("metaDataId")
	if v == "" {
		return channel.SourceTarget, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, errordefs.New(errordefs.CC_VALIDATION, "metaDataId must be a non-negative integer", "")
	}
	return n, nil
}

func sequence(r *http.Request) (int64, error) {
	n, err := strconv.ParseInt(r.PathValue("seq"), 10, 64)
	if err != nil || n < 0 {
		return 0, errordefs.New(errordefs.CC_VALIDATION, "sequence number must be a non-negative integer", "")
	}
	return n, nil
}

// edit runs fn against the document of the caller with the target of the
// request and writes the resulting workspace.
func (m *Mux) edit(w http.ResponseWriter, r *http.Request, fn func(c *model.Channel, target int64) (*model.Channel, error)) {
	t, err := target(r)
	if err != nil {
		m.fail(w, r, err)
		return
	}
	s, err := m.deps.Workspaces.Get(subjectOf(r)).Update(r.Context(), func(c *model.Channel) (*model.Channel, error) {
		if t != channel.SourceTarget && c.Destination(t) == nil {
			return nil, channel.ErrMissingTarget
		}
		return fn(c, t)
	})
	if err != nil {
		m.fail(w, r, err)
		return
	}
	m.writeSuccess(w, http.StatusOK, s)
}

func (m *Mux) handleAddFilterRule(w http.ResponseWriter, r *http.Request) {
	m.edit(w, r, func(c *model.Channel, t int64) (*model.Channel, error) {
		return channel.AddFilterRule(c, t), nil
	})
}

func (m *Mux) handleReplaceFilterRule(w http.ResponseWriter, r *http.Request) {
	seq, err := sequence(r)
	if err != nil {
		m.fail(w, r, err)
		return
	}
	var rule channel.Rule
	if err := m.decode(r, &rule); err != nil {
		m.fail(w, r, err)
		return
	}
	m.edit(w, r, func(c *model.Channel, t int64) (*model.Channel, error) {
		return channel.ReplaceFilterRule(c, t, seq, rule), nil
	})
}

func (m *Mux) handleDeleteFilterRule(w http.ResponseWriter, r *http.Request) {
	seq, err := sequence(r)
	if err != nil {
		m.fail(w, r, err)
		return
	}
	m.edit(w, r, func(c *model.Channel, t int64) (*model.Channel, error) {
		return channel.DeleteFilterRule(c, t, seq), nil
	})
}

func (m *Mux) handleAddTransformerStep(w http.ResponseWriter, r *http.Request) {
	m.edit(w, r, func(c *model.Channel, t int64) (*model.Channel, error) {
		return channel.AddTransformerStep(c, t), nil
	})
}

func (m *Mux) handleReplaceTransformerStep(w http.ResponseWriter, r *http.Request) {
	seq, err := sequence(r)
	if err != nil {
		m.fail(w, r, err)
		return
	}
	var step model.JavaScriptStep
	if err := m.decode(r, &step); err != nil {
		m.fail(w, r, err)
		return
	}
	m.edit(w, r, func(c *model.Channel, t int64) (*model.Channel, error) {
		return channel.ReplaceTransformerStep(c, t, seq, step), nil
	})
}

func (m *Mux) handleDeleteTransformerStep(w http.ResponseWriter, r *http.Request) {
	seq, err := sequence(r)
	if err != nil {
		m.fail(w, r, err)
		return
	}
	m.edit(w, r, func(c *model.Channel, t int64) (*model.Channel, error) {
		return channel.DeleteTransformerStep(c, t, seq), nil
	})
}

func (m *Mux) handleGetTable(w http.ResponseWriter, r *http.Request) {
	t, err := target(r)
	if err != nil {
		m.fail(w, r, err)
		return
	}
	s := m.deps.Workspaces.Get(subjectOf(r)).Snapshot()
	if s.Channel == nil {
		m.fail(w, r, workspace.ErrNoDocument)
		return
	}
	table, err := view.Project(s.Channel, r.PathValue("table"), t)
	if err != nil {
		m.fail(w, r, err)
		return
	}
	m.writeSuccess(w, http.StatusOK, table)
}

type tableRequest struct {
	Rows []view.Row `json:"rows" validate:"required"`
}

func (m *Mux) handlePutTable(w http.ResponseWriter, r *http.Request) {
	var req tableRequest
	if err := m.decode(r, &req); err != nil {
		m.fail(w, r, err)
		return
	}
	name := r.PathValue("table")
	m.edit(w, r, func(c *model.Channel, t int64) (*model.Channel, error) {
		return view.ApplyRows(c, name, t, req.Rows)
	})
}
