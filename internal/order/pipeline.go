package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"example.com/resource-catalogue/internal/executor"
	"example.com/resource-catalogue/internal/ledger"
	"example.com/resource-catalogue/internal/notify"
	"example.com/resource-catalogue/internal/registry"
	"example.com/resource-catalogue/internal/stac"
)

// Executor starts provider adaptor workflows.
type Executor interface {
	Execute(ctx context.Context, inv executor.Invocation) (json.RawMessage, error)
}

// Settings are the deployment values the pipeline stamps into records and
// invocations.
type Settings struct {
	// Bucket is the workspace bucket holding order records.
	Bucket        string
	EventBusURL   string
	ClusterPrefix string
	// SourceBaseURL is the public catalogue API that serves source items.
	SourceBaseURL string
	// OrderRecordBaseURL is where workspace catalogues are served.
	OrderRecordBaseURL string
}

// Deps are the collaborators of a Pipeline. Ledger may be nil.
type Deps struct {
	Registry  *registry.Registry
	Countries CountryValidator
	Fetcher   DocumentFetcher
	Uploader  *Uploader
	Executor  Executor
	Publisher notify.Publisher
	Ledger    ledger.Store
}

// Pipeline validates, records and dispatches commercial orders. Each step is
// exported so a durable workflow can run them as separate activities; Order
// runs them in process.
type Pipeline struct {
	deps     Deps
	settings Settings
	logger   *slog.Logger
}

func NewPipeline(deps Deps, settings Settings, logger *slog.Logger) *Pipeline {
	if deps.Ledger == nil {
		deps.Ledger = ledger.Discard{}
	}
	return &Pipeline{deps: deps, settings: settings, logger: logger}
}

// Describe validates a submission and derives everything needed to place
// it. No side effects happen here apart from the country check.
func (p *Pipeline) Describe(ctx context.Context, sub Submission) (Descriptor, error) {
	if !registry.ValidParent(sub.Parent) {
		return Descriptor{}, &Error{Kind: KindNotFound, Message: "Not Found"}
	}
	col, err := p.deps.Registry.Lookup(sub.Catalog, sub.Collection)
	if err != nil {
		return Descriptor{}, &Error{Kind: KindNotFound, Message: "Not Found", Err: err}
	}
	if sub.Workspace == "" {
		return Descriptor{}, &Error{Kind: KindNotFound, Message: "Not Found"}
	}

	t, err := variantFor(col.Family).resolve(ctx, sub.Request, sub.Username, p.deps.Countries)
	if err != nil {
		return Descriptor{}, err
	}

	tag := Tag(t.Bundle, t.Radar, sub.Request.Coordinates)
	return Descriptor{
		Submission:  sub,
		Collection:  col,
		Bundle:      t.Bundle,
		Licence:     t.Licence,
		LicenceWire: t.LicenceWire,
		Radar:       t.Radar,
		EndUsers:    t.EndUsers,
		Tag:         tag,
		BaseItemURL: fmt.Sprintf("%s/stac/catalogs/%s/catalogs/%s/collections/%s/items/%s",
			p.settings.SourceBaseURL, sub.Parent, sub.Catalog, sub.Collection, sub.Item),
		Location: fmt.Sprintf("%s/%s/catalogs/%s/catalogs/%s/collections/%s/items/%s%s",
			p.settings.OrderRecordBaseURL, sub.Workspace, CatalogName, sub.Catalog, sub.Collection, sub.Item, tag),
	}, nil
}

// Prepare describes the submission and writes its pending record, unless a
// pending or succeeded record already exists.
func (p *Pipeline) Prepare(ctx context.Context, sub Submission) (Prepared, error) {
	d, err := p.Describe(ctx, sub)
	if err != nil {
		return Prepared{}, err
	}

	snap, err := p.deps.Uploader.Upload(ctx, d, compositeCheck(d.Collection))
	if err != nil {
		return Prepared{}, err
	}
	prepared := Prepared{
		Order:              d,
		ShortCircuit:       snap.ShortCircuit,
		Status:             snap.Status,
		Item:               snap.Item,
		AddedKeys:          snap.AddedKeys,
		ItemKey:            snap.ItemKey,
		TransformedItemKey: snap.TransformedItemKey,
	}
	if snap.ShortCircuit {
		return prepared, nil
	}

	entry, err := p.deps.Ledger.Append(ctx, ledger.Entry{
		Workspace:  sub.Workspace,
		Catalog:    sub.Catalog,
		Collection: sub.Collection,
		ItemID:     sub.Item,
		Tag:        d.Tag,
		Status:     string(stac.StatusPending),
		ItemKey:    snap.ItemKey,
		Location:   d.Location,
	})
	if err != nil {
		p.logger.Warn("ledger append failed", "location", d.Location, "error", err)
	} else {
		prepared.LedgerID = entry.ID
	}
	return prepared, nil
}

// compositeCheck rejects multi and stereo PNEO acquisitions.
func compositeCheck(col registry.Collection) func(stac.Document) error {
	if col.Family != registry.FamilyOpticalPNEO {
		return nil
	}
	return func(source stac.Document) error {
		if len(source.ComposedOf()) > 0 {
			return &Error{Kind: KindUnsupported, Message: MsgCompositeUnsupported}
		}
		return nil
	}
}

// Invocation builds the adaptor workflow request for a prepared order.
func (p *Pipeline) Invocation(prep Prepared) (executor.Invocation, error) {
	d := prep.Order
	sub := d.Submission

	bundle := d.Bundle
	if d.Radar != nil {
		data, err := json.Marshal(d.Radar)
		if err != nil {
			return executor.Invocation{}, fmt.Errorf("encode radar options: %w", err)
		}
		bundle = string(data)
	}

	coordinates := "[]"
	if len(sub.Request.Coordinates) > 0 {
		data, err := json.Marshal(sub.Request.Coordinates)
		if err != nil {
			return executor.Invocation{}, fmt.Errorf("encode coordinates: %w", err)
		}
		coordinates = string(data)
	}

	var endUsers *string
	if d.EndUsers != nil {
		data, err := json.Marshal(d.EndUsers)
		if err != nil {
			return executor.Invocation{}, fmt.Errorf("encode end users: %w", err)
		}
		s := string(data)
		endUsers = &s
	}

	commercialBucket := d.Collection.CommercialBucket
	if commercialBucket == "" {
		commercialBucket = p.settings.Bucket
	}

	return executor.Invocation{
		ProviderWorkspace: sub.Catalog,
		Workflow:          d.Collection.Adaptor,
		Authorization:     sub.Authorization,
		Inputs: executor.Inputs{
			Workspace:            sub.Workspace,
			ClusterPrefix:        p.settings.ClusterPrefix,
			WorkspaceBucket:      p.settings.Bucket,
			CommercialDataBucket: commercialBucket,
			PulsarURL:            p.settings.EventBusURL,
			ProductBundle:        bundle,
			STACKey:              fmt.Sprintf("s3://%s/%s", p.settings.Bucket, prep.ItemKey),
			Coordinates:          coordinates,
			EndUsers:             endUsers,
			Licence:              d.LicenceWire,
		},
	}, nil
}

// Dispatch asks the executor to fulfil a prepared order. Any failure is a
// KindExecutor error; the cause is logged and not surfaced.
func (p *Pipeline) Dispatch(ctx context.Context, prep Prepared) error {
	inv, err := p.Invocation(prep)
	if err != nil {
		p.logger.Error("build workflow invocation failed", "location", prep.Order.Location, "error", err)
		return &Error{Kind: KindExecutor, Message: MsgExecutorFailed, Err: err}
	}
	resp, err := p.deps.Executor.Execute(ctx, inv)
	if err != nil {
		p.logger.Error("error executing order workflow", "workflow", inv.Workflow, "workspace", inv.Inputs.Workspace, "error", err)
		return &Error{Kind: KindExecutor, Message: MsgExecutorFailed, Err: err}
	}
	p.logger.Info("order workflow accepted", "workflow", inv.Workflow, "workspace", inv.Inputs.Workspace, "response", string(resp))
	return nil
}

// MarkFailed rewrites the order record with status failed. The record is
// rebuilt from a fresh copy of the source; when that fetch fails the pending
// record is flipped in place instead. The failed record is returned even if
// the write fails.
func (p *Pipeline) MarkFailed(ctx context.Context, prep Prepared) (stac.Document, error) {
	d := prep.Order
	var item stac.Document
	if source, err := p.deps.Fetcher.Document(ctx, d.BaseItemURL); err == nil {
		item, err = p.deps.Uploader.BuildRecord(source, d, stac.StatusFailed)
		if err != nil {
			p.logger.Warn("rebuild failed record", "location", d.Location, "error", err)
			item = nil
		}
	} else {
		p.logger.Warn("refetch source for failed record", "url", d.BaseItemURL, "error", err)
	}
	if item == nil {
		item = prep.Item.Clone()
		item.SetOrderStatus(stac.StatusFailed, "")
	}

	var errs []error
	if err := p.deps.Uploader.WriteItem(ctx, prep.ItemKey, prep.TransformedItemKey, item); err != nil {
		p.logger.Error("write failed record", "item_key", prep.ItemKey, "error", err)
		errs = append(errs, err)
	}
	if prep.LedgerID != "" {
		if err := p.deps.Ledger.UpdateStatus(ctx, prep.LedgerID, string(stac.StatusFailed)); err != nil {
			p.logger.Warn("ledger update failed", "ledger_id", prep.LedgerID, "error", err)
		}
	}
	return item, errors.Join(errs...)
}

// Notify announces the transformed keys of the record to the harvester.
func (p *Pipeline) Notify(ctx context.Context, prep Prepared) error {
	event := notify.OrderEvent(prep.Order.Submission.Workspace, p.settings.Bucket, prep.AddedKeys)
	if err := p.deps.Publisher.Publish(ctx, event); err != nil {
		p.logger.Error("publish order event failed", "event_id", event.ID, "error", err)
		return err
	}
	return nil
}

// Outcome is the caller-facing result of a prepared order that was either
// short-circuited or dispatched.
func (prep Prepared) Outcome() Outcome {
	out := Outcome{
		Status:   prep.Status,
		Item:     prep.Item,
		Location: prep.Order.Location,
	}
	if prep.ShortCircuit {
		out.Message = fmt.Sprintf("Order not placed. Current item status is %s", prep.Status)
		return out
	}
	out.Created = true
	return out
}

// Order runs the whole pipeline in process.
func (p *Pipeline) Order(ctx context.Context, sub Submission) (Outcome, error) {
	prep, err := p.Prepare(ctx, sub)
	if err != nil {
		return Outcome{}, err
	}
	if prep.ShortCircuit {
		p.logger.Info("order not placed", "location", prep.Order.Location, "status", prep.Status)
		return prep.Outcome(), nil
	}

	if err := p.Dispatch(ctx, prep); err != nil {
		// Reconciliation runs on a context that survives the caller going away.
		rctx := context.WithoutCancel(ctx)
		_, _ = p.MarkFailed(rctx, prep)
		_ = p.Notify(rctx, prep)
		return Outcome{}, err
	}

	_ = p.Notify(ctx, prep)
	return prep.Outcome(), nil
}
