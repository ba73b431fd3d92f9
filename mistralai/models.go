package mistralai

// Chat model ids.
const (
	ChatModelTiny    = "open-mistral-7b"
	ChatModelMixtral = "open-mixtral-8x7b"
	ChatModelSmall   = "mistral-small-latest"
	ChatModelMedium  = "mistral-medium-latest"
	ChatModelLarge   = "mistral-large-latest"
)

// Embedding model ids.
const (
	EmbeddingModelEmbed = "mistral-embed"
)

const (
	DefaultChatModel      = ChatModelTiny
	DefaultEmbeddingModel = EmbeddingModelEmbed
	DefaultEncodingFormat = "float"
	DefaultTemperature    = 0.7
	DefaultTopP           = 1.0
)
