package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/relaycore/channel-console/internal/archive"
	"github.com/relaycore/channel-console/internal/channel"
	errordefs "github.com/relaycore/channel-console/internal/errors"
	"github.com/relaycore/channel-console/internal/mirth"
	"github.com/relaycore/channel-console/internal/model"
	"github.com/relaycore/channel-console/internal/storage"
	"github.com/relaycore/channel-console/internal/view"
	"github.com/relaycore/channel-console/internal/workflow"
)

// channelList is the list slice of a workspace.
type channelList struct {
	Channels []model.ChannelSummary `json:"channels"`
	State    workflow.State         `json:"state"`
}

func (m *Mux) handleListChannels(w http.ResponseWriter, r *http.Request) {
	s := m.deps.Workspaces.Get(subjectOf(r)).Snapshot()
	m.writeSuccess(w, http.StatusOK, channelList{Channels: s.Channels, State: s.List})
}

func (m *Mux) handleRefreshChannels(w http.ResponseWriter, r *http.Request) {
	s, err := m.deps.Workspaces.Refresh(r.Context(), subjectOf(r))
	if err != nil {
		m.failUpstream(w, r, err)
		return
	}
	m.writeSuccess(w, http.StatusOK, channelList{Channels: s.Channels, State: s.List})
}

type createChannelRequest struct {
	// Name rules are enforced by the create workflow so its messages reach the client.
	Name string `json:"name"`
}

func (m *Mux) handleCreateChannel(w http.ResponseWriter, r *http.Request) {
	var req createChannelRequest
	if err := m.decode(r, &req); err != nil {
		m.fail(w, r, err)
		return
	}
	s, err := m.deps.Workspaces.Create(r.Context(), subjectOf(r), req.Name)
	if err != nil {
		m.failUpstream(w, r, err)
		return
	}
	m.writeSuccess(w, http.StatusCreated, s)
}

type lifecycleRequest struct {
	ReturnErrors bool   `json:"returnErrors"`
	DebugOptions string `json:"debugOptions" validate:"omitempty,max=256"`
}

func (m *Mux) handleLifecycle(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	action, ok := mirth.ParseAction(r.PathValue("action"))
	if !ok {
		m.fail(w, r, errordefs.New(errordefs.CC_UNKNOWN_ACTION, "unknown channel action "+strconv.Quote(r.PathValue("action")), ""))
		return
	}

	var err error
	if action == mirth.ActionDeploy && r.ContentLength > 0 {
		var req lifecycleRequest
		if err := m.decode(r, &req); err != nil {
			m.fail(w, r, err)
			return
		}
		err = m.deps.Engine.Deploy(r.Context(), id, mirth.DeployOptions{ReturnErrors: req.ReturnErrors, DebugOptions: req.DebugOptions})
	} else {
		err = m.deps.Engine.Lifecycle(r.Context(), id, action)
	}
	if err != nil {
		m.failUpstream(w, r, err)
		return
	}
	m.writeSuccess(w, http.StatusOK, map[string]string{"channelId": id, "action": string(action)})
}

type clearStatisticsRequest struct {
	ChannelIDs []string `json:"channelIds" validate:"required,min=1,dive,required"`
	mirth.ClearOptions
}

func (m *Mux) handleClearStatistics(w http.ResponseWriter, r *http.Request) {
	var req clearStatisticsRequest
	if err := m.decode(r, &req); err != nil {
		m.fail(w, r, err)
		return
	}
	if err := m.deps.Engine.ClearStatistics(r.Context(), req.ChannelIDs, req.ClearOptions); err != nil {
		m.failUpstream(w, r, err)
		return
	}
	m.writeSuccess(w, http.StatusOK, map[string]int{"cleared": len(req.ChannelIDs)})
}

func (m *Mux) handleConnectorNames(w http.ResponseWriter, r *http.Request) {
	names, err := m.deps.Engine.ConnectorNames(r.Context(), r.PathValue("id"))
	if err != nil {
		m.failUpstream(w, r, err)
		return
	}
	m.writeSuccess(w, http.StatusOK, names)
}

func (m *Mux) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	q := storage.SnapshotQuery{ChannelID: r.PathValue("id"), Cursor: r.URL.Query().Get("cursor")}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			m.fail(w, r, errordefs.New(errordefs.CC_VALIDATION, "limit must be a positive integer", ""))
			return
		}
		q.Limit = n
	}
	page, err := m.deps.Journal.Snapshots(r.Context(), q)
	if err != nil {
		m.fail(w, r, err)
		return
	}
	m.writeSuccess(w, http.StatusOK, page)
}

func (m *Mux) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	s, err := m.deps.Journal.Snapshot(r.Context(), r.PathValue("id"), r.PathValue("snapshotId"))
	if err != nil {
		m.fail(w, r, err)
		return
	}
	m.writeSuccess(w, http.StatusOK, s)
}

func (m *Mux) handleExportLink(w http.ResponseWriter, r *http.Request) {
	if m.deps.Exports == nil {
		m.fail(w, r, errordefs.New(errordefs.CC_NOT_IMPLEMENTED, "channel exports are not configured", ""))
		return
	}
	id := r.PathValue("id")
	url, err := m.deps.Exports.ExportURL(r.Context(), id, exportLinkTTL)
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			m.fail(w, r, errordefs.New(errordefs.CC_NOT_FOUND, "channel has not been exported yet", ""))
			return
		}
		m.fail(w, r, err)
		return
	}
	m.writeSuccess(w, http.StatusOK, map[string]interface{}{
		"channelId": id,
		"url":       url,
		"expiresIn": int(exportLinkTTL.Seconds()),
	})
}

func (m *Mux) handleEvents(w http.ResponseWriter, r *http.Request) {
	events, err := m.deps.Engine.Events(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		m.failUpstream(w, r, err)
		return
	}
	m.writeSuccess(w, http.StatusOK, view.EventRows(events))
}

func (m *Mux) handlePorts(w http.ResponseWriter, r *http.Request) {
	ports, err := m.deps.Engine.PortsInUse(r.Context())
	if err != nil {
		m.failUpstream(w, r, err)
		return
	}
	m.writeSuccess(w, http.StatusOK, ports)
}

func (m *Mux) handleGetGlobalScripts(w http.ResponseWriter, r *http.Request) {
	g, err := m.deps.Engine.GlobalScripts(r.Context())
	if err != nil {
		m.failUpstream(w, r, err)
		return
	}
	m.writeSuccess(w, http.StatusOK, g)
}

type globalScriptRequest struct {
	Key    string `json:"key" validate:"required,oneof=Deploy Undeploy Preprocessor Postprocessor"`
	Script string `json:"script"`
}

// handlePutGlobalScript replaces one global script and saves the set.
func (m *Mux) handlePutGlobalScript(w http.ResponseWriter, r *http.Request) {
	var req globalScriptRequest
	if err := m.decode(r, &req); err != nil {
		m.fail(w, r, err)
		return
	}
	current, err := m.deps.Engine.GlobalScripts(r.Context())
	if err != nil {
		m.failUpstream(w, r, err)
		return
	}
	next := current.With(req.Key, req.Script)
	if m.deps.Validator != nil {
		if err := m.deps.Validator.ValidateGlobalScripts(next); err != nil {
			m.fail(w, r, err)
			return
		}
	}
	if err := m.deps.Engine.SetGlobalScripts(r.Context(), next); err != nil {
		m.failUpstream(w, r, err)
		return
	}
	m.writeSuccess(w, http.StatusOK, next)
}

// optionsResponse is everything the editor needs to render its controls.
type optionsResponse struct {
	view.Options
	Actions []string `json:"actions"`
	Tables  []string `json:"tables"`
}

func (m *Mux) handleOptions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	anonymous := strings.EqualFold(q.Get("anonymous"), "true")
	m.writeSuccess(w, http.StatusOK, optionsResponse{
		Options: view.AllOptions(q.Get("scheme"), anonymous),
		Actions: channel.ActionTypes(),
		Tables:  view.TableNames(),
	})
}
