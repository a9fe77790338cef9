package decode

// SignedRegion returns the contiguous byte range of q.Raw covered by
// Signature.EcdsaSignature, per variant:
//
//	SGX v3:             [0, HeaderLen+SgxBodyLen)
//	TDX v4 (v1.0):       [0, HeaderLen+TdBodyV10Len)
//	TDX v5 (v1.0/v1.5):  [0, HeaderLen+BodyDescLen+TdBody{V10,V15}Len)
//
// q.bodyDescLen is 0 for a v4 quote and BodyDescLen for a v5 quote
// regardless of which TD report layout the descriptor selects, so the
// same formula covers both v5 body kinds.
//
// The returned slice aliases q.Raw; it is never copied.
func SignedRegion(q *Quote) []byte {
	switch q.Body.Kind {
	case BodySgx:
		return q.Raw[0 : HeaderLen+SgxBodyLen]
	case BodyTdxV10:
		return q.Raw[0 : HeaderLen+q.bodyDescLen+TdBodyV10Len]
	case BodyTdxV15:
		return q.Raw[0 : HeaderLen+q.bodyDescLen+TdBodyV15Len]
	default:
		return nil
	}
}
