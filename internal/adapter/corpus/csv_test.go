package corpus

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"qbank/internal/adapter/fs"
	"qbank/internal/domain"
)

const sampleCSV = `ID,Question ID,Question,Option 1,Option 2,Option 3,Option 4,Option 5,Answer,Explain,Difficulty
1,101,বাংলাদেশের রাজধানী কোথায়?,ঢাকা,চট্টগ্রাম,খুলনা,রাজশাহী,,1,<b>ঢাকা</b> রাজধানী।,2
2,102,,a,b,c,d,e,2,,1
3,103,?!,a,b,c,d,e,2,,1
4.0,104,পানির সংকেত কী?,H2O,CO2,,,,H2O,,3.0
x,105,Question with bad id,a,b,,,,,,
`

func TestReadCSV(t *testing.T) {
	records, report, err := ReadCSV(strings.NewReader(sampleCSV), 0)
	require.NoError(t, err)

	assert.Equal(t, 5, report.Rows)
	assert.Equal(t, 3, report.Kept)
	assert.Equal(t, 1, report.DroppedMissingQuestion)
	assert.Equal(t, 1, report.DroppedEmptyCleaned)
	assert.Equal(t, 1, report.MalformedIDs)
	require.Len(t, records, 3)

	first := records[0]
	require.NotNil(t, first.ID)
	assert.Equal(t, int64(1), *first.ID)
	assert.Equal(t, int64(101), *first.QuestionID)
	assert.Equal(t, "বাংলাদেশের রাজধানী কোথায়?", first.Question)
	assert.Equal(t, "বাংলাদেশের রাজধানী কোথায়", first.QuestionCleaned)
	assert.Equal(t, "ঢাকা", *first.Options[0])
	assert.Nil(t, first.Options[4])
	assert.Equal(t, "1", *first.AnswerRaw)
	assert.Equal(t, int64(2), *first.Difficulty)

	second := records[1]
	assert.Equal(t, int64(4), *second.ID)
	assert.Equal(t, int64(3), *second.Difficulty)
	assert.Nil(t, second.Explanation)
	assert.Nil(t, second.Options[2])

	third := records[2]
	assert.Nil(t, third.ID)
	assert.Nil(t, third.AnswerRaw)
	assert.Nil(t, third.Difficulty)
}

func TestReadCSV_EveryRetainedRecordHasCleanedText(t *testing.T) {
	records, _, err := ReadCSV(strings.NewReader(sampleCSV), 0)
	require.NoError(t, err)
	for _, rec := range records {
		assert.NotEmpty(t, rec.QuestionCleaned)
	}
}

func TestReadCSV_HeaderVariants(t *testing.T) {
	src := "\ufeffid,question_id,QUESTION,option_1\n7,8,hello?,x\n"
	records, _, err := ReadCSV(strings.NewReader(src), 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(7), *records[0].ID)
	assert.Equal(t, int64(8), *records[0].QuestionID)
	assert.Equal(t, "x", *records[0].Options[0])
	assert.Nil(t, records[0].Options[1])
}

func TestReadCSV_MissingQuestionColumn(t *testing.T) {
	_, _, err := ReadCSV(strings.NewReader("ID,Answer\n1,2\n"), 0)
	assert.ErrorIs(t, err, ErrMissingQuestionColumn)

	_, _, err = ReadCSV(strings.NewReader(""), 0)
	assert.ErrorIs(t, err, ErrMissingQuestionColumn)
}

func TestReadCSV_Delimiter(t *testing.T) {
	records, _, err := ReadCSV(strings.NewReader("ID;Question\n1;a b\n"), ';')
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a b", records[0].Question)
}

func TestEmbeddingText(t *testing.T) {
	rec := domain.QuestionRecord{QuestionCleaned: "প্রশ্ন"}
	assert.Equal(t, "প্রশ্ন", EmbeddingText(rec))

	rec.Explanation = domain.StringPtr("<i>ব্যাখ্যা</i>!")
	assert.Equal(t, "প্রশ্ন ব্যাখ্যা", EmbeddingText(rec))

	rec.Explanation = domain.StringPtr("?!")
	assert.Equal(t, "প্রশ্ন", EmbeddingText(rec))
}

func TestFingerprint(t *testing.T) {
	a := []domain.QuestionRecord{
		{ID: domain.Int64Ptr(1), QuestionCleaned: "a"},
		{ID: domain.Int64Ptr(2), QuestionCleaned: "b"},
	}
	b := []domain.QuestionRecord{a[1], a[0]}

	assert.Equal(t, Fingerprint(a), Fingerprint(a))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
	assert.Len(t, Fingerprint(nil), 32)
}

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), []byte("ID,Question\n2,second\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("ID,Question\n1,first\n,\n"), 0644))

	loader := NewLoader(fs.NewWalker(nil, nil), dir, 0, zap.NewNop())
	records, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "first", records[0].Question)
	assert.Equal(t, "second", records[1].Question)

	report := loader.Report()
	assert.Equal(t, 3, report.Rows)
	assert.Equal(t, 2, report.Kept)
}

func TestLoader_NoFiles(t *testing.T) {
	loader := NewLoader(fs.NewWalker(nil, nil), t.TempDir(), 0, nil)
	_, err := loader.Load(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}
