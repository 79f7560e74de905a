package editor

import (
	"fmt"
	"strings"

	"github.com/easyblocks/easyblocks/internal/model"
	"github.com/easyblocks/easyblocks/internal/richtext"
	"github.com/easyblocks/easyblocks/internal/schema"
)

// reduce returns the state after cmd. prev is never modified.
func (s *Session) reduce(prev State, cmd Command) (State, error) {
	next := prev
	next.Focus = append([]string{}, prev.Focus...)

	switch cmd.Type {
	case CmdSetFocus:
		next.Focus = append([]string{}, cmd.Fields...)
		return next, nil
	case CmdSetLocale:
		if !s.knownLocale(cmd.Locale) {
			return prev, invalid(cmd, "unknown locale %q", cmd.Locale)
		}
		next.Locale = cmd.Locale
		return next, nil
	case CmdSetDevice:
		if _, ok := s.opts.Compiler.Devices().Find(cmd.Device); !ok {
			return prev, invalid(cmd, "unknown device %q", cmd.Device)
		}
		next.Device = cmd.Device
		return next, nil
	}

	next.Config = prev.Config.Clone()
	var err error
	switch cmd.Type {
	case CmdSetValue:
		err = s.setValue(&next, cmd)
	case CmdInsertItem:
		err = s.insertItem(&next, cmd)
	case CmdRemoveItem:
		err = s.removeItem(&next, cmd)
	case CmdMoveItem:
		err = s.moveItem(&next, cmd)
	case CmdRichTextMark:
		err = s.richTextMark(&next, cmd)
	}
	if err != nil {
		return prev, err
	}
	if err := next.Config.CheckUniqueIDs(); err != nil {
		return prev, invalid(cmd, "%v", err)
	}
	return next, nil
}

func (s *Session) knownLocale(code string) bool {
	locales := s.opts.Compiler.Global().Locales
	if len(locales) == 0 {
		return true
	}
	for _, l := range locales {
		if l.Code == code {
			return true
		}
	}
	return false
}

func (s *Session) definition(cmd Command, node *model.ComponentConfig) (*schema.ComponentDefinition, error) {
	def, ok := s.opts.Compiler.Registry().Lookup(node.DefinitionID())
	if !ok {
		return nil, invalid(cmd, "unknown component %q", node.Template)
	}
	return def, nil
}

func (s *Session) setValue(st *State, cmd Command) error {
	node, err := nodeAt(st.Config, cmd.Path)
	if err != nil {
		return invalid(cmd, "%v", err)
	}
	def, err := s.definition(cmd, node)
	if err != nil {
		return err
	}
	sp, ok := def.Prop(cmd.Prop)
	if !ok {
		return invalid(cmd, "%s has no prop %q", def.ID, cmd.Prop)
	}
	if schema.IsSlotType(sp.Type) {
		return invalid(cmd, "%q is a slot, use insert-item", cmd.Prop)
	}
	value, err := model.DecodeValue(cmd.Value)
	if err != nil {
		return invalid(cmd, "%v", err)
	}

	changes := map[string]any{cmd.Prop: value}
	if def.Change != nil {
		if out := def.Change(schema.ChangeInput{
			NewValue:        value,
			Prop:            cmd.Prop,
			Values:          model.CloneValue(node.Props).(map[string]any),
			ValuesAfterAuto: s.valuesAfterAuto(node.ID),
		}); out != nil {
			changes = out
		}
	}
	for k, v := range changes {
		if v == nil {
			delete(node.Props, k)
			continue
		}
		node.Props[k] = v
	}
	return nil
}

// valuesAfterAuto returns the props of id as the last pass saw them after
// auto functions ran.
func (s *Session) valuesAfterAuto(id string) map[string]any {
	if s.afterAuto == nil {
		return map[string]any{}
	}
	node, _, ok := s.afterAuto.FindByID(id)
	if !ok {
		return map[string]any{}
	}
	return model.CloneValue(node.Props).(map[string]any)
}

func (s *Session) insertItem(st *State, cmd Command) error {
	parent, err := nodeAt(st.Config, cmd.Path)
	if err != nil {
		return invalid(cmd, "%v", err)
	}
	def, err := s.definition(cmd, parent)
	if err != nil {
		return err
	}
	slot, ok := def.Prop(cmd.Prop)
	if !ok || !schema.IsSlotType(slot.Type) {
		return invalid(cmd, "%s has no slot %q", def.ID, cmd.Prop)
	}

	child, err := model.ConfigFromMap(cmd.Config)
	if err != nil {
		return invalid(cmd, "%v", err)
	}
	childDef, ok := s.opts.Compiler.Registry().Lookup(child.DefinitionID())
	if !ok {
		return invalid(cmd, "unknown component %q", child.Template)
	}
	if !schema.Accepts(slot, childDef) {
		return invalid(cmd, "%s does not accept %s", cmd.Prop, childDef.ID)
	}
	assignIDs(child, s.opts.NewID)

	ref := slotRef{parent: parent, prop: cmd.Prop}
	if slot.Type == schema.TypeComponentCollectionLocalised {
		ref.locale = cmd.Locale
		if ref.locale == "" {
			ref.locale = st.Locale
		}
	}

	index := 0
	switch slot.Type {
	case schema.TypeComponent, schema.TypeComponentFixed:
		ref.set([]*model.ComponentConfig{child})
	default:
		var children []*model.ComponentConfig
		children, index = insertAt(ref.children(), cmd.Index, child)
		ref.set(children)
	}
	st.Focus = []string{ref.childPath(cmd.Path, index)}
	return nil
}

func (s *Session) removeItem(st *State, cmd Command) error {
	ref, _, index, err := locate(st.Config, cmd.Path)
	if err != nil {
		return invalid(cmd, "%v", err)
	}
	children, _ := removeAt(ref.children(), index)
	ref.set(children)

	focus := st.Focus[:0]
	for _, f := range st.Focus {
		if !underPath(f, cmd.Path) {
			focus = append(focus, f)
		}
	}
	st.Focus = focus
	return nil
}

func (s *Session) moveItem(st *State, cmd Command) error {
	ref, parentPath, index, err := locate(st.Config, cmd.Path)
	if err != nil {
		return invalid(cmd, "%v", err)
	}
	children, node := removeAt(ref.children(), index)
	children, to := insertAt(children, cmd.Index, node)
	ref.set(children)
	st.Focus = []string{ref.childPath(parentPath, to)}
	return nil
}

func (s *Session) richTextMark(st *State, cmd Command) error {
	node, err := nodeAt(st.Config, cmd.Path)
	if err != nil {
		return invalid(cmd, "%v", err)
	}
	if node.DefinitionID() != richtext.RichTextID {
		return invalid(cmd, "%q is not rich text", cmd.Path)
	}
	locale := cmd.Locale
	if locale == "" {
		locale = st.Locale
	}

	ed, err := richtext.FromConfig(richtext.Elements(node, locale))
	if err != nil {
		return invalid(cmd, "%v", err)
	}
	if err := ed.Select(*cmd.Selection); err != nil {
		return invalid(cmd, "%v", err)
	}
	values := make([]any, len(cmd.Values))
	for i, v := range cmd.Values {
		if values[i], err = model.DecodeValue(v); err != nil {
			return invalid(cmd, "%v", err)
		}
	}

	update, err := richtext.UpdateSelection(ed, cmd.Mark, richtext.UpdateOptions{
		Locale:                    locale,
		DefaultActionTextModifier: richtext.DefaultActionTextModifier(s.opts.Compiler.Registry()),
	}, values...)
	if err != nil {
		return invalid(cmd, "%v", err)
	}
	richtext.SetElements(node, locale, update.Elements)

	focus := make([]string, 0, len(update.FocusedParts))
	for _, part := range update.FocusedParts {
		focus = append(focus, strings.TrimPrefix(fmt.Sprintf("%s.%s", cmd.Path, part), "."))
	}
	st.Focus = focus
	return nil
}
