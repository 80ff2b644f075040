package context

type Key string

const (
	Claims   Key = "claims"
	Params   Key = "params"
	Property Key = "property"
	RawBody  Key = "raw_body"
)
