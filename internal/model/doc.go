// Package model holds the data shared by every stage of the easyblocks
// pipeline: authoring configs, compiled configs, resources and compilation
// metadata.
//
// A ComponentConfig is a node of the authoring tree. Its props are kept as
// decoded JSON values with one exception: arrays of nested configs (child
// slots) are decoded into []*ComponentConfig, also when they sit inside a
// per-locale map. Configs are treated as immutable snapshots; editors clone
// before changing anything.
package model
