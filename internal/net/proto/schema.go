package proto

import "github.com/invopop/jsonschema"

// Schema returns one JSON schema per message type.
func Schema() map[Type]*jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}
	docs := map[Type]any{
		TypeJoin:   new(Join),
		TypeJoined: new(Joined),
		TypeLeave:  new(Leave),
		TypeInputs: new(Inputs),
		TypePing:   new(Ping),
		TypePong:   new(Pong),
	}
	out := make(map[Type]*jsonschema.Schema, len(docs))
	for typ, doc := range docs {
		schema := reflector.Reflect(doc)
		schema.Title = "Arena Duel " + string(typ) + " message"
		out[typ] = schema
	}
	return out
}
