package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pedroasavelar91/nexus-familiar/pkg/logger"
)

// Change announces a committed write so other sessions can invalidate caches.
type Change struct {
	Table     string    `json:"table"`
	Operation Operation `json:"op"`
	IDs       []string  `json:"ids"`
	FamilyID  string    `json:"family_id,omitempty"`
	At        time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Versioner keeps a monotonically increasing counter per family and table.
type Versioner interface {
	BumpVersion(ctx context.Context, familyID, table string, ttl time.Duration) (int64, error)
}

// ChangeFeed decorates a Store and publishes a Change after every
// successful write. Publish failures are logged and never fail the write.
type ChangeFeed struct {
	Store
	pub        Publisher
	channel    string
	versions   Versioner
	versionTTL time.Duration
	logg       *logger.Logger
	now        func() time.Time
}

func NewChangeFeed(inner Store, pub Publisher, channel string, logg *logger.Logger) (*ChangeFeed, error) {
	if inner == nil {
		return nil, fmt.Errorf("inner store required")
	}
	if pub == nil {
		return nil, fmt.Errorf("publisher required")
	}
	if channel == "" {
		return nil, fmt.Errorf("channel required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &ChangeFeed{Store: inner, pub: pub, channel: channel, logg: logg, now: time.Now}, nil
}

// WithVersions bumps a per-table counter alongside every published change.
func (f *ChangeFeed) WithVersions(v Versioner, ttl time.Duration) *ChangeFeed {
	f.versions = v
	f.versionTTL = ttl
	return f
}

func (f *ChangeFeed) Insert(ctx context.Context, table string, row Row) (Row, error) {
	created, err := f.Store.Insert(ctx, table, row)
	if err != nil {
		return nil, err
	}
	id, familyID := created.String("id"), created.String("family_id")
	if table == TableFamilies {
		familyID = id
	}
	f.emit(ctx, Change{Table: table, Operation: OperationInsert, IDs: []string{id}, FamilyID: familyID})
	return created, nil
}

func (f *ChangeFeed) Update(ctx context.Context, table, id string, patch Row) error {
	if err := f.Store.Update(ctx, table, id, patch); err != nil {
		return err
	}
	familyID := patch.String("family_id")
	if familyID == "" {
		familyID = f.familyOf(ctx, table, id)
	}
	f.emit(ctx, Change{Table: table, Operation: OperationUpdate, IDs: []string{id}, FamilyID: familyID})
	return nil
}

func (f *ChangeFeed) Delete(ctx context.Context, table, id string) error {
	familyID := f.familyOf(ctx, table, id)
	if err := f.Store.Delete(ctx, table, id); err != nil {
		return err
	}
	f.emit(ctx, Change{Table: table, Operation: OperationDelete, IDs: []string{id}, FamilyID: familyID})
	return nil
}

// DeleteMany publishes one change per family the deleted rows belonged to.
func (f *ChangeFeed) DeleteMany(ctx context.Context, table string, ids []string) error {
	if len(ids) == 0 {
		return f.Store.DeleteMany(ctx, table, ids)
	}
	families, groups := f.familiesOf(ctx, table, ids)
	if err := f.Store.DeleteMany(ctx, table, ids); err != nil {
		return err
	}
	for _, familyID := range families {
		f.emit(ctx, Change{Table: table, Operation: OperationDeleteMany, IDs: groups[familyID], FamilyID: familyID})
	}
	return nil
}

func (f *ChangeFeed) familyOf(ctx context.Context, table, id string) string {
	families, _ := f.familiesOf(ctx, table, []string{id})
	if len(families) == 0 {
		return ""
	}
	return families[0]
}

// familiesOf groups ids by the family_id of their stored rows, in first-seen
// order. Ids that cannot be resolved land under the empty family.
func (f *ChangeFeed) familiesOf(ctx context.Context, table string, ids []string) ([]string, map[string][]string) {
	scope := make(map[string]string, len(ids))
	if table == TableFamilies {
		for _, id := range ids {
			scope[id] = id
		}
	} else {
		rows, err := f.Store.Select(ctx, table, Where().In("id", ids))
		if err != nil {
			f.logg.Warn(f.logg.WithFields(ctx, map[string]any{"table": table, "error": err.Error()}), "resolve change scope failed")
		}
		for _, row := range rows {
			scope[row.String("id")] = row.String("family_id")
		}
	}

	var order []string
	groups := make(map[string][]string)
	for _, id := range ids {
		familyID := scope[id]
		if _, seen := groups[familyID]; !seen {
			order = append(order, familyID)
		}
		groups[familyID] = append(groups[familyID], id)
	}
	return order, groups
}

func (f *ChangeFeed) emit(ctx context.Context, change Change) {
	change.At = f.now().UTC()
	ctx = f.logg.WithFields(ctx, map[string]any{"table": change.Table, "op": string(change.Operation)})

	payload, err := json.Marshal(change)
	if err != nil {
		f.logg.Error(ctx, "encode change event", err)
		return
	}
	if err := f.pub.Publish(ctx, f.channel, payload); err != nil {
		f.logg.Warn(f.logg.WithField(ctx, "error", err.Error()), "publish change event failed")
	}
	if f.versions != nil {
		if _, err := f.versions.BumpVersion(ctx, change.FamilyID, change.Table, f.versionTTL); err != nil {
			f.logg.Warn(f.logg.WithField(ctx, "error", err.Error()), "bump table version failed")
		}
	}
}
