package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedroasavelar91/nexus-familiar/pkg/logger"
)

type recordingPublisher struct {
	channel string
	events  []Change
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, payload []byte) error {
	if p.err != nil {
		return p.err
	}
	p.channel = channel
	var change Change
	if err := json.Unmarshal(payload, &change); err != nil {
		return err
	}
	p.events = append(p.events, change)
	return nil
}

type recordingVersioner struct {
	keys []string
}

func (v *recordingVersioner) BumpVersion(_ context.Context, familyID, table string, _ time.Duration) (int64, error) {
	v.keys = append(v.keys, familyID+"/"+table)
	return int64(len(v.keys)), nil
}

func TestChangeFeedPublishesCommittedWrites(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	versions := &recordingVersioner{}
	feed, err := NewChangeFeed(NewMemory(), pub, "changes", logger.Nop())
	require.NoError(t, err)
	feed.WithVersions(versions, time.Hour)

	family := uuid.NewString()
	row, err := feed.Insert(ctx, TableTasks, Row{"family_id": family, "title": "a"})
	require.NoError(t, err)
	id := row.String("id")
	require.NoError(t, feed.Update(ctx, TableTasks, id, Row{"completed": true}))
	require.NoError(t, feed.DeleteMany(ctx, TableTasks, nil))
	require.NoError(t, feed.Delete(ctx, TableTasks, id))

	require.Equal(t, "changes", pub.channel)
	require.Len(t, pub.events, 3, "empty batch deletes publish nothing")
	assert.Equal(t, OperationInsert, pub.events[0].Operation)
	assert.Equal(t, family, pub.events[0].FamilyID)
	assert.Equal(t, []string{id}, pub.events[1].IDs)
	assert.Equal(t, OperationDelete, pub.events[2].Operation)
	assert.Equal(t, family, pub.events[1].FamilyID, "update scope comes from the stored row")
	assert.Equal(t, family, pub.events[2].FamilyID, "delete scope is read before the row goes")
	assert.Equal(t, []string{family + "/tasks", family + "/tasks", family + "/tasks"}, versions.keys)
}

func TestChangeFeedDeleteManyGroupsByFamily(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	versions := &recordingVersioner{}
	feed, err := NewChangeFeed(NewMemory(), pub, "changes", nil)
	require.NoError(t, err)
	feed.WithVersions(versions, time.Hour)

	silva, costa := uuid.NewString(), uuid.NewString()
	var ids []string
	for _, family := range []string{silva, costa, silva} {
		row, err := feed.Insert(ctx, TableShoppingItems, Row{"family_id": family, "name": "milk"})
		require.NoError(t, err)
		ids = append(ids, row.String("id"))
	}
	pub.events, versions.keys = nil, nil

	require.NoError(t, feed.DeleteMany(ctx, TableShoppingItems, ids))
	require.Len(t, pub.events, 2)
	assert.Equal(t, silva, pub.events[0].FamilyID)
	assert.Equal(t, []string{ids[0], ids[2]}, pub.events[0].IDs)
	assert.Equal(t, costa, pub.events[1].FamilyID)
	assert.Equal(t, []string{ids[1]}, pub.events[1].IDs)
	assert.Equal(t, []string{silva + "/shopping_items", costa + "/shopping_items"}, versions.keys)
}

func TestChangeFeedScopesFamilyRowsByTheirID(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	feed, err := NewChangeFeed(NewMemory(), pub, "changes", nil)
	require.NoError(t, err)

	row, err := feed.Insert(ctx, TableFamilies, Row{"name": "Silva"})
	require.NoError(t, err)
	id := row.String("id")
	require.NoError(t, feed.Update(ctx, TableFamilies, id, Row{"name": "Silva Costa"}))
	require.NoError(t, feed.Delete(ctx, TableFamilies, id))

	require.Len(t, pub.events, 3)
	assert.Equal(t, id, pub.events[0].FamilyID)
	assert.Equal(t, id, pub.events[1].FamilyID)
	assert.Equal(t, id, pub.events[2].FamilyID)
}

func TestChangeFeedSkipsFailedWrites(t *testing.T) {
	mem := NewMemory()
	mem.Fail(TableTasks, "", errors.New("boom"))
	pub := &recordingPublisher{}
	feed, err := NewChangeFeed(mem, pub, "changes", nil)
	require.NoError(t, err)

	_, err = feed.Insert(context.Background(), TableTasks, Row{})
	require.Error(t, err)
	assert.Empty(t, pub.events)
}

func TestChangeFeedPublishFailureDoesNotFailWrite(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})
	feed, err := NewChangeFeed(NewMemory(), &recordingPublisher{err: errors.New("redis down")}, "changes", logg)
	require.NoError(t, err)

	_, err = feed.Insert(context.Background(), TableTasks, Row{"title": "a"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "publish change event failed")
}

func TestNewChangeFeedValidates(t *testing.T) {
	_, err := NewChangeFeed(nil, &recordingPublisher{}, "c", nil)
	require.Error(t, err)
	_, err = NewChangeFeed(NewMemory(), nil, "c", nil)
	require.Error(t, err)
	_, err = NewChangeFeed(NewMemory(), &recordingPublisher{}, "", nil)
	require.Error(t, err)
}
