package editor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyblocks/easyblocks/internal/compiler"
	"github.com/easyblocks/easyblocks/internal/components"
	"github.com/easyblocks/easyblocks/internal/logger"
	"github.com/easyblocks/easyblocks/internal/model"
	"github.com/easyblocks/easyblocks/internal/resource"
	"github.com/easyblocks/easyblocks/internal/richtext"
	"github.com/easyblocks/easyblocks/internal/schema"
	"github.com/easyblocks/easyblocks/internal/store"
	"github.com/easyblocks/easyblocks/internal/web/websocket"
)

// recorder collects published snapshots.
type recorder struct {
	mu    sync.Mutex
	snaps []*Snapshot
}

func (r *recorder) Publish(documentID string, snap *Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snap)
	return nil
}

func (r *recorder) last() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snaps) == 0 {
		return nil
	}
	return r.snaps[len(r.snaps)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

type fixture struct {
	lib     *components.Library
	store   *store.MemoryStore
	out     *recorder
	options Options
}

func newFixture(t *testing.T, fetcher resource.Fetcher, setup ...func(*schema.Registry)) *fixture {
	t.Helper()
	lib, err := components.NewLibrary(nil, nil)
	require.NoError(t, err)
	for _, fn := range setup {
		fn(lib.Schema)
	}

	var engine *resource.Engine
	var opts []compiler.Option
	if fetcher != nil {
		engine = resource.NewEngine(fetcher)
		opts = append(opts, compiler.WithResourceState(engine))
	}
	c, err := compiler.New(lib.Schema, lib.Global, opts...)
	require.NoError(t, err)

	f := &fixture{lib: lib, store: store.NewMemoryStore(), out: &recorder{}}
	f.options = Options{
		Compiler:  c,
		Engine:    engine,
		Runtime:   lib.Runtime,
		Store:     f.store,
		Transport: f.out,
		Logger:    logger.NewNoOpLogger(),
		NewID:     sequentialIDs(),
	}
	return f
}

func (f *fixture) open(t *testing.T, cfg *model.ComponentConfig) *Session {
	t.Helper()
	s, err := NewSession(&model.Document{ProjectID: "p1", DocumentID: "d1", Config: cfg}, f.options)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func text(id, value string) *model.ComponentConfig {
	return model.NewConfig(components.TextID, id, map[string]any{
		"value": model.NewLocalText(id, map[string]any{"en": value}),
	})
}

func stack(items ...*model.ComponentConfig) *model.ComponentConfig {
	return model.NewConfig(components.StackID, "root", map[string]any{"items": items})
}

func itemIDs(cfg *model.ComponentConfig) []string {
	var ids []string
	for _, c := range model.Children(cfg.Props["items"]) {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestNewSession_PublishesFirstSnapshot(t *testing.T) {
	f := newFixture(t, nil)
	s := f.open(t, stack(text("t1", "Hello")))

	snap := f.out.last()
	require.NotNil(t, snap)
	assert.Equal(t, uint64(1), snap.Revision)
	assert.Equal(t, "d1", snap.DocumentID)
	assert.Equal(t, "en", snap.Locale)
	assert.Equal(t, "xl", snap.Device)
	assert.Len(t, snap.Devices, 6)
	assert.Contains(t, snap.Preview, "Hello")
	assert.NotNil(t, snap.Compiled)
	assert.Same(t, snap, s.Snapshot())
}

func TestNewSession_RejectsDuplicateIDs(t *testing.T) {
	f := newFixture(t, nil)
	_, err := NewSession(&model.Document{DocumentID: "d1", Config: stack(text("t1", "a"), text("t1", "b"))}, f.options)
	assert.Error(t, err)
}

func TestApply_SetValue(t *testing.T) {
	f := newFixture(t, nil)
	s := f.open(t, stack(text("t1", "Hello")))
	before := s.State().Config

	snap, err := s.Apply(context.Background(), Command{Type: CmdSetValue, Prop: "align", Value: "center"})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), snap.Revision)
	assert.Equal(t, "center", s.State().Config.Props["align"])
	assert.NotContains(t, before.Props, "align", "previous state must not change")

	_, err = s.Apply(context.Background(), Command{Type: CmdSetValue, Path: "items.0", Prop: "value",
		Value: model.NewLocalText("t1", map[string]any{"en": "Bye"})})
	require.NoError(t, err)
	assert.Contains(t, f.out.last().Preview, "Bye")
}

func TestApply_SetValueRejected(t *testing.T) {
	f := newFixture(t, nil)
	s := f.open(t, stack(text("t1", "Hello")))

	tests := []struct {
		name string
		cmd  Command
	}{
		{"slot prop", Command{Type: CmdSetValue, Prop: "items", Value: []any{}}},
		{"unknown prop", Command{Type: CmdSetValue, Prop: "nope", Value: 1}},
		{"missing node", Command{Type: CmdSetValue, Path: "items.4", Prop: "value", Value: "x"}},
		{"no prop", Command{Type: CmdSetValue}},
		{"unknown type", Command{Type: "explode"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			published := f.out.count()
			_, err := s.Apply(context.Background(), tt.cmd)
			assert.ErrorIs(t, err, ErrInvalidCommand)
			assert.Equal(t, published, f.out.count())
		})
	}
}

func TestApply_SetValueRunsChange(t *testing.T) {
	f := newFixture(t, nil, func(reg *schema.Registry) {
		reg.MustRegister(&schema.ComponentDefinition{
			ID: "Counter",
			Schema: []schema.SchemaProp{
				{Prop: "count", Type: schema.TypeNumber},
				{Prop: "label", Type: schema.TypeString},
			},
			Change: func(in schema.ChangeInput) map[string]any {
				if in.Prop != "count" {
					return nil
				}
				return map[string]any{"count": in.NewValue, "label": fmt.Sprintf("%v items", in.NewValue), "stale": nil}
			},
		})
	})
	f.options.Runtime = nil
	s := f.open(t, model.NewConfig("Counter", "c1", map[string]any{"stale": true}))

	_, err := s.Apply(context.Background(), Command{Type: CmdSetValue, Prop: "count", Value: 3})
	require.NoError(t, err)
	props := s.State().Config.Props
	assert.Equal(t, 3, props["count"])
	assert.Equal(t, "3 items", props["label"])
	assert.NotContains(t, props, "stale")

	_, err = s.Apply(context.Background(), Command{Type: CmdSetValue, Prop: "label", Value: "custom"})
	require.NoError(t, err)
	assert.Equal(t, "custom", s.State().Config.Props["label"])
	assert.Equal(t, 3, s.State().Config.Props["count"])
}

func TestApply_InsertItem(t *testing.T) {
	f := newFixture(t, nil)
	s := f.open(t, stack(text("t1", "First")))

	inserted := map[string]any{
		model.KeyTemplate: components.TextID,
		model.KeyID:       "t1",
		"value":           model.NewLocalText("t1", map[string]any{"en": "Zeroth"}),
	}
	snap, err := s.Apply(context.Background(), Command{Type: CmdInsertItem, Prop: "items", Index: 0, Config: inserted})
	require.NoError(t, err)

	cfg := s.State().Config
	assert.Equal(t, []string{"id-1", "t1"}, itemIDs(cfg))
	assert.Equal(t, "local.id-2", model.Children(cfg.Props["items"])[0].Props["value"].(map[string]any)["id"])
	assert.Equal(t, []string{"items.0"}, snap.FocussedField)
	assert.Contains(t, snap.Preview, "Zeroth")

	t.Run("out of range index appends", func(t *testing.T) {
		_, err := s.Apply(context.Background(), Command{Type: CmdInsertItem, Prop: "items", Index: 99,
			Config: map[string]any{model.KeyTemplate: components.TextID}})
		require.NoError(t, err)
		assert.Equal(t, []string{"id-1", "t1", "id-3"}, itemIDs(s.State().Config))
		assert.Equal(t, []string{"items.2"}, s.State().Focus)
	})

	t.Run("rejects components the slot does not accept", func(t *testing.T) {
		_, err := s.Apply(context.Background(), Command{Type: CmdInsertItem, Prop: "items",
			Config: map[string]any{model.KeyTemplate: components.LinkID}})
		assert.ErrorIs(t, err, ErrInvalidCommand)
	})

	t.Run("rejects unknown components", func(t *testing.T) {
		_, err := s.Apply(context.Background(), Command{Type: CmdInsertItem, Prop: "items",
			Config: map[string]any{model.KeyTemplate: "Nope"}})
		assert.ErrorIs(t, err, ErrInvalidCommand)
	})
}

func TestApply_InsertIntoSingleSlotReplaces(t *testing.T) {
	f := newFixture(t, nil)
	img := model.NewConfig(components.ImageID, "i1", map[string]any{
		"action": []*model.ComponentConfig{model.NewConfig(components.AlertID, "a1", nil)},
	})
	s := f.open(t, img)

	_, err := s.Apply(context.Background(), Command{Type: CmdInsertItem, Prop: "action",
		Config: map[string]any{model.KeyTemplate: components.LinkID, "url": "/x"}})
	require.NoError(t, err)

	action := model.Children(s.State().Config.Props["action"])
	require.Len(t, action, 1)
	assert.Equal(t, components.LinkID, action[0].Template)
	assert.Equal(t, []string{"action.0"}, s.State().Focus)
}

func TestApply_RemoveAndMoveItem(t *testing.T) {
	f := newFixture(t, nil)
	s := f.open(t, stack(text("a", "A"), text("b", "B"), text("c", "C")))
	ctx := context.Background()

	_, err := s.Apply(ctx, Command{Type: CmdMoveItem, Path: "items.0", Index: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a"}, itemIDs(s.State().Config))
	assert.Equal(t, []string{"items.2"}, s.State().Focus)

	_, err = s.Apply(ctx, Command{Type: CmdSetFocus, Fields: []string{"items.1.value", "items.10", "align"}})
	require.NoError(t, err)

	_, err = s.Apply(ctx, Command{Type: CmdRemoveItem, Path: "items.1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, itemIDs(s.State().Config))
	assert.Equal(t, []string{"items.10", "align"}, s.State().Focus)

	_, err = s.Apply(ctx, Command{Type: CmdRemoveItem, Path: "items.5"})
	assert.ErrorIs(t, err, ErrInvalidCommand)
	_, err = s.Apply(ctx, Command{Type: CmdRemoveItem})
	assert.ErrorIs(t, err, ErrInvalidCommand)
}

func TestApply_LocaleAndDevice(t *testing.T) {
	f := newFixture(t, nil)
	s := f.open(t, stack(text("t1", "Hello")))
	ctx := context.Background()

	snap, err := s.Apply(ctx, Command{Type: CmdSetDevice, Device: "xs"})
	require.NoError(t, err)
	assert.Equal(t, "xs", snap.Device)

	_, err = s.Apply(ctx, Command{Type: CmdSetDevice, Device: "watch"})
	assert.ErrorIs(t, err, ErrInvalidCommand)

	_, err = s.Apply(ctx, Command{Type: CmdSetLocale, Locale: "de"})
	require.NoError(t, err, "projects without locales accept any locale")
	assert.Equal(t, "de", s.State().Locale)
}

func TestApply_RichTextMark(t *testing.T) {
	f := newFixture(t, nil)
	p1 := model.NewConfig(richtext.PartID, "p1", map[string]any{"value": "Hello "})
	p2 := model.NewConfig(richtext.PartID, "p2", map[string]any{"value": "world"})
	line := model.NewConfig(richtext.LineElementID, "l1", map[string]any{"elements": []*model.ComponentConfig{p1, p2}})
	block := model.NewConfig(richtext.BlockElementID, "b1", map[string]any{
		"type":     richtext.BlockParagraph,
		"elements": []*model.ComponentConfig{line},
	})
	rt := model.NewConfig(richtext.RichTextID, "rt", map[string]any{
		"elements": map[string]any{"en": []*model.ComponentConfig{block}},
	})
	s := f.open(t, stack(rt))

	sel := &richtext.Range{
		Anchor: richtext.Point{Path: richtext.Path{0, 0, 0}, Offset: 0},
		Focus:  richtext.Point{Path: richtext.Path{0, 0, 0}, Offset: 6},
	}
	snap, err := s.Apply(context.Background(), Command{
		Type:      CmdRichTextMark,
		Path:      "items.0",
		Mark:      richtext.MarkColor,
		Values:    []any{map[string]any{"ref": "white", "value": "#ffffff"}},
		Selection: sel,
	})
	require.NoError(t, err)

	node := model.Children(s.State().Config.Props["items"])[0]
	parts := model.Children(model.Children(richtext.Elements(node, "en")[0].Props["elements"])[0].Props["elements"])
	require.Len(t, parts, 2)
	assert.Equal(t, map[string]any{"ref": "white", "value": "#ffffff"}, parts[0].Props[richtext.MarkColor])
	assert.NotContains(t, parts[1].Props, richtext.MarkColor)
	assert.Equal(t, []string{"items.0.elements.en.0.elements.0.elements.0"}, snap.FocussedField)

	t.Run("rejects non rich text nodes", func(t *testing.T) {
		_, err := s.Apply(context.Background(), Command{
			Type: CmdRichTextMark, Mark: richtext.MarkColor, Values: []any{"red"}, Selection: sel,
		})
		assert.ErrorIs(t, err, ErrInvalidCommand)
	})
}

func TestSession_RepublishesWhenFetchesSettle(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(t, resource.FetcherFunc(func(ctx context.Context, inputs map[string]resource.FetchInput) (map[string]resource.FetchResult, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		out := make(map[string]resource.FetchResult, len(inputs))
		for id, in := range inputs {
			out[id] = resource.FetchResult{Type: schema.TypeImage, Value: map[string]any{"url": "/" + in.ExternalID, "alt": "Cat"}}
		}
		return out, nil
	}))
	img := model.NewConfig(components.ImageID, "i1", map[string]any{
		"image": model.ExternalReference{ID: "cat.jpg", WidgetID: "@easyblocks/url"}.ToMap(),
	})
	f.open(t, img)

	first := f.out.last()
	require.NotEmpty(t, first.ExternalData)
	for _, r := range first.ExternalData {
		assert.Equal(t, model.StatusLoading, r.Status)
	}
	assert.NotContains(t, first.Preview, "cat.jpg")

	close(release)
	assert.Eventually(t, func() bool {
		last := f.out.last()
		return last.Revision > first.Revision && strings.Contains(last.Preview, `src="/cat.jpg"`)
	}, 2*time.Second, 10*time.Millisecond)
	for _, r := range f.out.last().ExternalData {
		assert.Equal(t, model.StatusSuccess, r.Status)
	}
}

// hookTransport runs a hook before recording each snapshot.
type hookTransport struct {
	*recorder
	before func(snap *Snapshot)
}

func (h hookTransport) Publish(documentID string, snap *Snapshot) error {
	if h.before != nil {
		h.before(snap)
	}
	return h.recorder.Publish(documentID, snap)
}

func TestSession_FetchLandingDuringNewerPassIsPicked(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(t, resource.FetcherFunc(func(ctx context.Context, inputs map[string]resource.FetchInput) (map[string]resource.FetchResult, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		out := make(map[string]resource.FetchResult, len(inputs))
		for id, in := range inputs {
			out[id] = resource.FetchResult{Type: schema.TypeImage, Value: map[string]any{"url": "/" + in.ExternalID}}
		}
		return out, nil
	}))
	// the fetch of revision 1 completes while revision 2 is publishing
	f.options.Transport = hookTransport{recorder: f.out, before: func(snap *Snapshot) {
		if snap.Revision == 2 {
			close(release)
			time.Sleep(200 * time.Millisecond)
		}
	}}

	img := model.NewConfig(components.ImageID, "i1", map[string]any{
		"image": model.ExternalReference{ID: "cat.jpg", WidgetID: "@easyblocks/url"}.ToMap(),
	})
	s := f.open(t, img)

	snap, err := s.Apply(context.Background(), Command{Type: CmdSetFocus, Fields: []string{"image"}})
	require.NoError(t, err)
	require.Equal(t, uint64(2), snap.Revision)
	assert.Equal(t, model.StatusLoading, snap.ExternalData["i1.image"].Status)

	assert.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.Revision > 2 && snap.ExternalData["i1.image"].Status == model.StatusSuccess
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"image"}, s.Snapshot().FocussedField)
}

func TestSession_Save(t *testing.T) {
	f := newFixture(t, nil)
	s := f.open(t, stack(text("t1", "Hello")))
	ctx := context.Background()

	version, err := s.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	_, err = s.Apply(ctx, Command{Type: CmdSetValue, Prop: "align", Value: "right"})
	require.NoError(t, err)
	version, err = s.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	doc, err := f.store.Get(ctx, "p1", "d1")
	require.NoError(t, err)
	assert.Equal(t, "right", doc.Config.Props["align"])

	t.Run("conflict", func(t *testing.T) {
		_, err := f.store.Save(ctx, &model.Document{ProjectID: "p1", DocumentID: "d1", Version: 2, Config: doc.Config})
		require.NoError(t, err)
		_, err = s.Save(ctx)
		assert.ErrorIs(t, err, store.ErrConflict)
	})
}

func TestSession_Closed(t *testing.T) {
	f := newFixture(t, nil)
	s := f.open(t, stack())
	s.Close()
	s.Close()
	_, err := s.Apply(context.Background(), Command{Type: CmdSetFocus})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestTree_Locate(t *testing.T) {
	rt := model.NewConfig(richtext.RichTextID, "rt", map[string]any{
		"elements": map[string]any{"en": []*model.ComponentConfig{model.NewConfig(richtext.BlockElementID, "b1", nil)}},
	})
	root := stack(text("a", "A"), rt)

	ref, parent, index, err := locate(root, "items.1.elements.en.0")
	require.NoError(t, err)
	assert.Equal(t, "items.1", parent)
	assert.Equal(t, 0, index)
	assert.Equal(t, "en", ref.locale)
	assert.Equal(t, "items.1.elements.en.3", ref.childPath(parent, 3))

	_, _, _, err = locate(root, "items")
	assert.Error(t, err)
	_, _, _, err = locate(root, "items.1.elements.de.0")
	assert.Error(t, err)

	node, err := nodeAt(root, "items.1.elements.en.0")
	require.NoError(t, err)
	assert.Equal(t, "b1", node.ID)
}

type wireSnapshot struct {
	Revision      uint64         `json:"revision"`
	FormValues    map[string]any `json:"formValues"`
	FocussedField []string       `json:"focussedField"`
}

func TestManager_Websocket(t *testing.T) {
	f := newFixture(t, nil)
	m := NewManager(ManagerOptions{Options: f.options, ProjectID: "p1", RootTemplate: components.StackID})

	server := websocket.NewServer(context.Background(), nil, logger.NewNoOpLogger())
	m.RegisterHandlers(server.Hub)
	server.Start()
	t.Cleanup(server.Shutdown)
	t.Cleanup(m.Close)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	ws, _, err := gorilla.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	defer ws.Close()

	read := func() websocket.Message {
		t.Helper()
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg websocket.Message
		require.NoError(t, ws.ReadJSON(&msg))
		return msg
	}
	send := func(typ string, data any) {
		t.Helper()
		raw, err := json.Marshal(data)
		require.NoError(t, err)
		require.NoError(t, ws.WriteJSON(websocket.Message{Type: typ, Data: raw}))
	}

	send(MsgJoin, map[string]string{"documentId": "home"})
	msg := read()
	require.Equal(t, MsgSnapshot, msg.Type)
	var snap wireSnapshot
	require.NoError(t, json.Unmarshal(msg.Data, &snap))
	assert.Equal(t, components.StackID, snap.FormValues[model.KeyTemplate])
	assert.Equal(t, 1, m.Len())

	send(MsgCommand, map[string]any{
		"documentId": "home",
		"command": map[string]any{
			"type":   CmdInsertItem,
			"prop":   "items",
			"index":  -1,
			"config": map[string]any{model.KeyTemplate: components.TextID},
		},
	})
	msg = read()
	require.Equal(t, MsgSnapshot, msg.Type)
	require.NoError(t, json.Unmarshal(msg.Data, &snap))
	assert.Equal(t, []string{"items.0"}, snap.FocussedField)
	assert.Len(t, snap.FormValues["items"], 1)

	send(MsgCommand, map[string]any{"documentId": "home", "command": map[string]any{"type": CmdRemoveItem}})
	assert.Equal(t, websocket.TypeError, read().Type)

	send(MsgSave, map[string]string{"documentId": "home"})
	msg = read()
	require.Equal(t, MsgSaved, msg.Type)
	assert.JSONEq(t, `{"documentId":"home","version":1}`, string(msg.Data))

	doc, err := f.store.Get(context.Background(), "p1", "home")
	require.NoError(t, err)
	assert.Len(t, model.Children(doc.Config.Props["items"]), 1)

	send(websocket.TypeStatus, map[string]any{})
	msg = read()
	require.Equal(t, websocket.TypeStatus, msg.Type)
	var status struct {
		Rooms []string `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(msg.Data, &status))
	assert.Equal(t, []string{Room("home")}, status.Rooms)

	send(MsgLeave, map[string]string{"documentId": "home"})
	assert.Eventually(t, func() bool { return m.Len() == 0 }, 2*time.Second, 10*time.Millisecond)

	send(MsgJoin, map[string]string{"documentId": "home"})
	require.Equal(t, MsgSnapshot, read().Type)
	assert.Equal(t, 1, m.Len())

	ws.Close()
	assert.Eventually(t, func() bool { return m.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}
