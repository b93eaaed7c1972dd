package graph

// BlockFactory constructs a block of a specific wire type from its
// deserialized identity fields. Concrete specializations register one of
// these under their wire tag so the serializer can dispatch on Block.Type
// without a type switch.
type BlockFactory func(id, name, description string) Block

var blockFactories = map[string]BlockFactory{
	"BaseBlock": func(id, name, description string) Block { return NewBlock(id, name, description) },
}

// RegisterBlockType registers a factory for the given wire tag. Called from
// specialization package init()s, mirroring the teacher's node-type
// registry.
func RegisterBlockType(tag string, factory BlockFactory) {
	blockFactories[tag] = factory
}

// GetBlockFactory looks up the factory registered for tag.
func GetBlockFactory(tag string) (BlockFactory, bool) {
	f, ok := blockFactories[tag]
	return f, ok
}

func init() {
	RegisterBlockType("Variable", func(id, name, description string) Block {
		b := NewVariable(id, name, description)
		return b
	})
	RegisterBlockType("Code", func(id, name, description string) Block {
		b := NewCode(id, name, description)
		return b
	})
	RegisterBlockType("LLMBlock", func(id, name, description string) Block {
		b := NewLLM(id, name, description)
		return b
	})
}
