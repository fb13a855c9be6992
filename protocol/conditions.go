package protocol

// Conditions is an opaque access-condition expression attached to a
// ciphertext. the protocol core carries it verbatim and binds it to the
// ciphertext as associated data; evaluation happens in a higher layer.
type Conditions string

// Context is an opaque request context supplied by the requester when
// asking for re-encryption (e.g., proof material for condition
// evaluation). carried verbatim, never interpreted here.
type Context string

// conditionsAD gives the associated-data bytes a Conditions value binds
// into its ciphertext. nil conditions bind as absent, which is distinct
// from the empty expression.
func conditionsAD(c *Conditions) []byte {
	if c == nil {
		return nil
	}
	out := []byte{1} // present marker precedes the expression bytes
	return append(out, []byte(*c)...)
}
