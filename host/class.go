package host

import (
	"github.com/reglet-dev/reglet-compose/capability"
	"github.com/reglet-dev/reglet-compose/domain/entities"
	"github.com/reglet-dev/reglet-compose/mixin"
	"github.com/reglet-dev/reglet-compose/plugin"
)

// Class describes a host type and, through Base, its ancestors.
type Class struct {
	Name string
	Base *Class

	// HookTypes are the event types this class adds.
	HookTypes []entities.EventType

	// Requires lists members this class expects on its own instances.
	Requires capability.Protocol

	// Mixins are the mixin slots this class adds or overrides.
	Mixins []mixin.Slot

	// Plugins are the plugin prototypes this class adds.
	Plugins []plugin.Plugin
}

// Chain returns the class and its ancestors, most-base first.
func (c *Class) Chain() []*Class {
	var rev []*Class
	seen := make(map[*Class]bool)
	for cls := c; cls != nil && !seen[cls]; cls = cls.Base {
		seen[cls] = true
		rev = append(rev, cls)
	}
	out := make([]*Class, len(rev))
	for i, cls := range rev {
		out[len(rev)-1-i] = cls
	}
	return out
}

// EventTypes returns the event types declared along the chain.
func (c *Class) EventTypes() entities.EventSet {
	out := entities.NewEventSet()
	for _, cls := range c.Chain() {
		out.Add(cls.HookTypes...)
	}
	return out
}

// Protocol returns the requirements declared along the chain. A derived
// class's requirement replaces a base requirement of the same name.
func (c *Class) Protocol() capability.Protocol {
	var p capability.Protocol
	for _, cls := range c.Chain() {
		p = p.Merge(cls.Requires)
	}
	return p
}

// PluginPrototypes returns the plugins of the chain, most-base first.
func (c *Class) PluginPrototypes() []plugin.Plugin {
	var out []plugin.Plugin
	for _, cls := range c.Chain() {
		out = append(out, cls.Plugins...)
	}
	return out
}

// MixinSlots returns the mixin slots of the chain, most-base first. A slot
// redeclared by a derived class keeps its base position and takes the
// derived prototype.
func (c *Class) MixinSlots() []mixin.Slot {
	var out []mixin.Slot
	index := make(map[string]int)
	for _, cls := range c.Chain() {
		for _, slot := range cls.Mixins {
			if i, ok := index[slot.Name]; ok {
				out[i] = slot
				continue
			}
			index[slot.Name] = len(out)
			out = append(out, slot)
		}
	}
	return out
}
