package moves

import "github.com/invopop/jsonschema"

// Schema describes the YAML/JSON move library document.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(new(Document))
	schema.Title = "Arena Duel Move Library"
	schema.Description = "Validates move definitions loaded by the combat state machine"
	return schema
}
