package embedding

import (
	"strings"

	"cogsensor/internal/logging"
)

// =============================================================================
// TASK TYPE SELECTION
// =============================================================================

// ContentType represents the kind of content being embedded. The corpus this
// pipeline reads is conversational, so only conversational turns, the
// synthetic intent/completion probe strings used to build prototype
// vectors, and the topic-clustering pass need a distinct task type.
type ContentType string

const (
	ContentTypeConversation ContentType = "conversation" // a message's user_text/full_text
	ContentTypeQuery        ContentType = "query"        // an intent or completion phrase probe
	ContentTypeClustering   ContentType = "clustering"   // vectors feeding the topic clusterer
)

// SelectTaskType picks the GenAI task type for a content type. Ollama ignores
// task type; GenAI uses it to bias the embedding toward retrieval vs.
// similarity vs. clustering.
func SelectTaskType(contentType ContentType, isQuery bool) string {
	var taskType string

	switch contentType {
	case ContentTypeQuery:
		if isQuery {
			taskType = "RETRIEVAL_QUERY"
		} else {
			taskType = "RETRIEVAL_DOCUMENT"
		}
	case ContentTypeClustering:
		taskType = "CLUSTERING"
	case ContentTypeConversation:
		taskType = "SEMANTIC_SIMILARITY"
	default:
		taskType = "SEMANTIC_SIMILARITY"
	}

	logging.EmbeddingDebug("SelectTaskType: content_type=%s is_query=%v -> task_type=%s", contentType, isQuery, taskType)
	return taskType
}

// DetectContentType infers a ContentType from metadata, falling back to
// conversation for anything unlabeled (the common case: a message's text).
func DetectContentType(text string, metadata map[string]interface{}) ContentType {
	if meta, ok := metadata["content_type"].(string); ok {
		return ContentType(meta)
	}
	if metaType, ok := metadata["type"].(string); ok {
		switch metaType {
		case "query", "intent_phrase", "completion_phrase":
			return ContentTypeQuery
		case "cluster_member":
			return ContentTypeClustering
		}
	}

	trimmed := strings.TrimSpace(text)
	if strings.HasSuffix(trimmed, "?") {
		return ContentTypeQuery
	}
	return ContentTypeConversation
}

// GetOptimalTaskType combines detection and selection for convenience.
func GetOptimalTaskType(text string, metadata map[string]interface{}, isQuery bool) string {
	contentType := DetectContentType(text, metadata)
	taskType := SelectTaskType(contentType, isQuery)
	logging.Embedding("GetOptimalTaskType: content_type=%s -> task_type=%s", contentType, taskType)
	return taskType
}
