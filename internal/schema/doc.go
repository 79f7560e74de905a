// Package schema defines component definitions and the registry the
// compiler looks them up in.
//
// A definition is pure data plus optional pure functions:
//
//   - Styles turns resolved values into styled boxes and child overrides
//   - Editing customises the editor fields of a node
//   - Auto derives prop values before styles run
//   - Change rewrites sibling values when the editor sets one prop
//
// Definitions are registered at startup and never change afterwards.
package schema
