// Package updater wires the Confluence client and the version table model
// into the one operation this tool exists for: set the version of a
// component in an environment on the tracked page.
package updater

import (
	"context"
	"fmt"

	"vertable/internal/confluence"
	"vertable/internal/vtable"

	"go.uber.org/zap"
)

// PageClient is the slice of the Confluence client the updater uses.
type PageClient interface {
	GetPage(ctx context.Context, pageID string) (*confluence.Page, error)
	UpdatePage(ctx context.Context, upd confluence.PageUpdate) error
}

// Request describes one update.
type Request struct {
	PageID      string
	Component   string
	Environment string
	Version     string

	// DryRun performs everything except the write.
	DryRun bool
}

// Result reports what happened.
type Result struct {
	PageID      string
	Title       string
	Previous    string // cell text before the update
	Version     string // cell text after the update
	PageVersion int    // page version number submitted (or that would be)
	Updated     bool   // false for dry runs
}

// Updater performs single-cell version updates on one Confluence page.
type Updater struct {
	client PageClient
	logger *zap.Logger
}

// New creates an Updater. A nil logger is replaced with a no-op one.
func New(client PageClient, logger *zap.Logger) *Updater {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Updater{client: client, logger: logger}
}

// Run fetches the page, replaces the target cell, and submits the new body
// with the version number incremented by one. Any failure is final; the
// caller decides whether to rerun.
func (u *Updater) Run(ctx context.Context, req Request) (*Result, error) {
	u.logger.Info("Updating version cell",
		zap.String("page_id", req.PageID),
		zap.String("component", req.Component),
		zap.String("environment", req.Environment),
		zap.String("version", req.Version),
		zap.Bool("dry_run", req.DryRun))

	page, err := u.client.GetPage(ctx, req.PageID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page %s: %w", req.PageID, err)
	}

	table, err := vtable.Parse(page.Body)
	if err != nil {
		return nil, fmt.Errorf("page %s: %w", req.PageID, err)
	}

	previous, err := table.CellText(req.Component, req.Environment)
	if err != nil {
		return nil, err
	}

	if err := table.SetVersion(req.Component, req.Environment, req.Version); err != nil {
		return nil, err
	}

	body, err := table.Render()
	if err != nil {
		return nil, err
	}

	result := &Result{
		PageID:      page.ID,
		Title:       page.Title,
		Previous:    previous,
		Version:     req.Version,
		PageVersion: page.Version + 1,
	}

	if req.DryRun {
		u.logger.Info("Dry run, skipping page update",
			zap.String("page_id", page.ID),
			zap.String("previous", previous),
			zap.String("version", req.Version))
		return result, nil
	}

	upd := confluence.PageUpdate{
		ID:        page.ID,
		Title:     page.Title,
		Version:   page.Version + 1,
		Body:      body,
		MinorEdit: true,
	}
	if err := u.client.UpdatePage(ctx, upd); err != nil {
		return nil, fmt.Errorf("failed to update page %s: %w", req.PageID, err)
	}

	result.Updated = true
	u.logger.Info("Page updated",
		zap.String("page_id", page.ID),
		zap.String("component", req.Component),
		zap.String("environment", req.Environment),
		zap.String("previous", previous),
		zap.String("version", req.Version),
		zap.Int("page_version", result.PageVersion))

	return result, nil
}

// Lookup reads the version currently recorded for (component, environment)
// without modifying the page.
func (u *Updater) Lookup(ctx context.Context, pageID, component, environment string) (string, error) {
	page, err := u.client.GetPage(ctx, pageID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch page %s: %w", pageID, err)
	}

	table, err := vtable.Parse(page.Body)
	if err != nil {
		return "", fmt.Errorf("page %s: %w", pageID, err)
	}

	return table.CellText(component, environment)
}
