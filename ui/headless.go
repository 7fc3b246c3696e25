package ui

import (
	"io"

	"github.com/charmbracelet/log"

	"github.com/crafted-tech/fxsetup/acquire"
	"github.com/crafted-tech/fxsetup/catalog"
	"github.com/crafted-tech/fxsetup/renderapi"
	"github.com/crafted-tech/fxsetup/setup"
)

// Headless is the presenter for unattended runs. Status goes to the logger
// and every question is answered with its cancelling default, which the
// workflow never asks in unattended mode anyway.
type Headless struct {
	logger *log.Logger
	stage  acquire.Stage
	pkg    string
}

// NewHeadless creates a presenter logging to logger. logger may be nil.
func NewHeadless(logger *log.Logger) *Headless {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Headless{logger: logger, stage: -1}
}

func (h *Headless) Report(s setup.Status) {
	switch {
	case s.Phase == setup.PhaseFailed:
		h.logger.Error(s.Message, "detail", s.Detail)
	case s.Detail != "":
		h.logger.Info(s.Message, "detail", s.Detail)
	default:
		h.logger.Info(s.Message)
	}
}

func (h *Headless) Warn(message string) {
	h.logger.Warn(message)
}

// Progress logs stage changes only.
func (h *Headless) Progress(p acquire.Progress) {
	if p.Stage == h.stage && p.Package.ID == h.pkg {
		return
	}
	h.stage, h.pkg = p.Stage, p.Package.ID
	h.logger.Debug(p.Stage.String(), "package", p.Package.DisplayName(), "index", p.Index+1, "count", p.Count)
}

func (h *Headless) ChooseAPI(setup.Target, renderapi.Detection) renderapi.API {
	return renderapi.Unset
}

func (h *Headless) ResolveConflict(setup.Conflict) setup.Decision {
	return setup.DecisionCancel
}

func (h *Headless) SelectPackages([]catalog.Package) []catalog.Package {
	return nil
}

var _ setup.Presenter = (*Headless)(nil)
