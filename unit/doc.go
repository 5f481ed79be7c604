// Package unit implements the prototype/bound lifecycle shared by mixins
// and plugins.
//
// A unit type embeds Base (through mixin.Base or plugin.Base). Values of
// that type written in a host's class declaration are prototypes: they are
// never executed. Binding a prototype to a host instance produces an
// independent copy with its own hook table and a weak reference back to the
// host.
package unit
