package types

// ChunkMetadata is the metadata persisted alongside each chunk. The
// embedding step treats it as an opaque map; bbox and page_number must
// survive to this point whenever they were extracted upstream.
type ChunkMetadata struct {
	SourceFilename        string       `json:"source_filename"`
	PageNumber            int          `json:"page_number"`
	BBox                  *BBox        `json:"bbox"`
	ElementCategory       Category     `json:"element_category"`
	SectionTitleInherited string       `json:"section_title_inherited,omitempty"`
	SectionTitlePattern   string       `json:"section_title_pattern,omitempty"`
	HasNumbers            bool         `json:"has_numbers"`
	ContentLength         int          `json:"content_length"`
	PageContext           PageStrategy `json:"page_context,omitempty"`
	TableImageCaption     string       `json:"table_image_caption,omitempty"`
	FullPageImageCaption  string       `json:"full_page_image_caption,omitempty"`
	ChunkIndex            int          `json:"chunk_index"`
}

// Chunk is the atomic unit of retrievable text handed to the embedding
// stage. Chunks own their content and metadata outright.
type Chunk struct {
	ChunkID  string        `json:"chunk_id"`
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
}

// IsCaptionDerived reports whether the chunk's content is a single
// table/image caption. Caption chunks are atomic and exempt from the
// min/max size invariant.
func (c Chunk) IsCaptionDerived() bool {
	return c.Metadata.TableImageCaption != "" || c.Metadata.FullPageImageCaption != ""
}
