package corpus

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/go-crypt/x/blake2b"
	"qbank/internal/adapter/analyzer"
	"qbank/internal/domain"
)

// EmbeddingText is the text embedded for a record: the cleaned question,
// followed by the normalized explanation when it is non-empty.
func EmbeddingText(rec domain.QuestionRecord) string {
	text := rec.QuestionCleaned
	if explain := analyzer.NormalizePtr(rec.Explanation); explain != "" {
		text += " " + explain
	}
	return text
}

// EmbeddingTexts maps EmbeddingText over records, preserving order.
func EmbeddingTexts(records []domain.QuestionRecord) []string {
	texts := make([]string, len(records))
	for i, rec := range records {
		texts[i] = EmbeddingText(rec)
	}
	return texts
}

// Fingerprint is a BLAKE2b digest over the ordered IDs and embedding texts.
// Two corpora with equal fingerprints produce identical embedding matrices
// under the same model.
func Fingerprint(records []domain.QuestionRecord) string {
	h, _ := blake2b.New(16, nil)
	var buf [9]byte
	for _, rec := range records {
		if rec.ID != nil {
			buf[0] = 1
			binary.LittleEndian.PutUint64(buf[1:], uint64(*rec.ID))
		} else {
			buf = [9]byte{}
		}
		h.Write(buf[:])
		text := EmbeddingText(rec)
		binary.LittleEndian.PutUint64(buf[1:], uint64(len(text)))
		h.Write(buf[1:])
		h.Write([]byte(text))
	}
	return hex.EncodeToString(h.Sum(nil))
}
