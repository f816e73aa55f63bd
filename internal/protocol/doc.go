// Package protocol owns the viewer command contract.
//
// Ownership boundary:
// - error taxonomy shared by the subpackages
// - schema: static node type tables and tree construction
// - xmlenc: the generic schema-driven serializer
// - command: the command vocabulary
// - session: the socket lifecycle with the viewer process
package protocol
