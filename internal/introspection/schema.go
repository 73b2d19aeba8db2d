package introspection

import (
	"strings"
	"sync"

	schema "github.com/foyez/graphql/internal/schema"
)

// metaSDL declares the introspection types. __MetaFields only carries the
// fields added to the query root and is not exposed itself.
const metaSDL = `
type __MetaFields {
  "Access the current type schema of this server."
  __schema: __Schema!
  "Request the type information of a single type."
  __type("The name of the type to look up." name: String!): __Type
}

type __Schema {
  description: String
  types: [__Type!]!
  queryType: __Type!
  mutationType: __Type
  subscriptionType: __Type
  directives: [__Directive!]!
}

type __Type {
  kind: __TypeKind!
  name: String
  description: String
  fields(includeDeprecated: Boolean = false): [__Field!]
  interfaces: [__Type!]
  possibleTypes: [__Type!]
  enumValues(includeDeprecated: Boolean = false): [__EnumValue!]
  inputFields(includeDeprecated: Boolean = false): [__InputValue!]
  ofType: __Type
  specifiedByURL: String
  isOneOf: Boolean
}

type __Field {
  name: String!
  description: String
  args(includeDeprecated: Boolean = false): [__InputValue!]!
  type: __Type!
  isDeprecated: Boolean!
  deprecationReason: String
}

type __InputValue {
  name: String!
  description: String
  type: __Type!
  defaultValue: String
  isDeprecated: Boolean!
  deprecationReason: String
}

type __EnumValue {
  name: String!
  description: String
  isDeprecated: Boolean!
  deprecationReason: String
}

type __Directive {
  name: String!
  description: String
  isRepeatable: Boolean!
  locations: [__DirectiveLocation!]!
  args(includeDeprecated: Boolean = false): [__InputValue!]!
}

enum __TypeKind {
  SCALAR
  OBJECT
  INTERFACE
  UNION
  ENUM
  INPUT_OBJECT
  LIST
  NON_NULL
}

enum __DirectiveLocation {
  QUERY
  MUTATION
  SUBSCRIPTION
  FIELD
  FRAGMENT_DEFINITION
  FRAGMENT_SPREAD
  INLINE_FRAGMENT
  VARIABLE_DEFINITION
  SCHEMA
  SCALAR
  OBJECT
  FIELD_DEFINITION
  ARGUMENT_DEFINITION
  INTERFACE
  UNION
  ENUM
  ENUM_VALUE
  INPUT_OBJECT
  INPUT_FIELD_DEFINITION
}
`

const metaFieldsType = "__MetaFields"

var metaTypes = sync.OnceValue(func() map[string]*schema.Type {
	b := schema.NewBuilder("")
	if err := b.LoadSDL("introspection.graphql", metaSDL); err != nil {
		panic("introspection: " + err.Error())
	}
	out := map[string]*schema.Type{}
	for name, t := range b.Schema().Types {
		if strings.HasPrefix(name, "__") {
			out[name] = t
		}
	}
	return out
})

// extend returns a copy of sch with the introspection types registered and
// __schema and __type appended to the query root. sch is not modified.
func extend(sch *schema.Schema) *schema.Schema {
	extended := &schema.Schema{
		QueryType:        sch.QueryType,
		MutationType:     sch.MutationType,
		SubscriptionType: sch.SubscriptionType,
		Types:            make(map[string]*schema.Type, len(sch.Types)+len(metaTypes())),
		Directives:       sch.Directives,
		Description:      sch.Description,
	}
	for name, t := range sch.Types {
		extended.Types[name] = t
	}
	for name, t := range metaTypes() {
		if name != metaFieldsType {
			extended.Types[name] = t
		}
	}

	if q := sch.GetQueryType(); q != nil {
		root := *q
		root.Fields = append(append([]*schema.Field(nil), q.Fields...), metaTypes()[metaFieldsType].Fields...)
		extended.Types[q.Name] = &root
	}
	return extended
}
