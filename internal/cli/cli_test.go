package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"qbank/internal/domain"
)

const testCSV = `ID,Question_ID,Question,Option_1,Option_2,Option_3,Option_4,Option_5,Answer,Explain,Difficulty
1,101,বাংলাদেশের রাজধানী কোথায়?,ঢাকা,চট্টগ্রাম,খুলনা,রাজশাহী,,1,ঢাকা বাংলাদেশের রাজধানী।,1
2,102,পানির রাসায়নিক সংকেত কী?,CO2,H2O,O2,NaCl,,H2O,,2
3,103,সূর্য কোন দিকে ওঠে?,পূর্ব,পশ্চিম,উত্তর,দক্ষিণ,,1,সূর্য পূর্ব দিকে ওঠে।,1
4,104,<p>জাতীয় ফুলের নাম কী?</p>,শাপলা,গোলাপ,জবা,বেলি,,1,,1
5,105,   ,x,y,,,,1,,1
`

const testConfigYAML = `embedding:
  provider: hash
  model: hash
  dimension: 128
  max_retries: 1
logging:
  level: error
`

func setupDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "questions.csv"), []byte(testCSV), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "qbank.yaml"), []byte(testConfigYAML), 0644))
	return dir
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// Commands share package-level flag variables, so every flag a step depends
// on is passed explicitly.
func TestCommands(t *testing.T) {
	dir := setupDataDir(t)

	out, err := execute(t, "", "index", "--dir", dir, "--force=false")
	require.NoError(t, err)
	assert.Contains(t, out, "Indexing complete")
	assert.Contains(t, out, "Questions:  4")
	assert.Contains(t, out, "Model:      hash-128")
	assert.FileExists(t, filepath.Join(dir, ".qbank", "embeddings.db"))
	assert.FileExists(t, filepath.Join(dir, ".qbank", "embeddings_index.db"))

	out, err = execute(t, "", "index", "--dir", dir, "--force=false")
	require.NoError(t, err)
	assert.Contains(t, out, "Bundle is up to date")

	out, err = execute(t, "", "index", "--dir", dir, "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Indexing complete")

	out, err = execute(t, "", "query", "--dir", dir, "-q", "বাংলাদেশের রাজধানী কোথায়", "--k", "2", "--json")
	require.NoError(t, err)
	var results []domain.ResultRecord
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, int64(1), *results[0].ID)
	assert.Equal(t, "ঢাকা", *results[0].AnswerText)

	out, err = execute(t, "", "query", "--dir", dir, "-q", "পানির রাসায়নিক সংকেত কী", "--k", "3", "--json=false")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 3 results")
	assert.Contains(t, out, "--- [1]")

	_, err = execute(t, "", "query", "--dir", dir, "-q", "abc", "--k", "9", "--json=false")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	out, err = execute(t, "", "ask", "--dir", dir, "-q", "পানির রাসায়নিক সংকেত কী", "--k", "2", "--json")
	require.NoError(t, err)
	var ans domain.Answer
	require.NoError(t, json.Unmarshal([]byte(out), &ans))
	require.NotNil(t, ans.Answer)
	assert.Equal(t, "H2O", *ans.Answer)
	assert.Len(t, ans.Alternatives, 1)

	out, err = execute(t, "", "stats", "--dir", dir, "--json")
	require.NoError(t, err)
	var stats domain.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 4, stats.TotalQuestions)
	assert.Equal(t, "hash-128", stats.ModelName)
	require.NotNil(t, stats.EmbeddingDimension)
	assert.Equal(t, 128, *stats.EmbeddingDimension)

	out, err = execute(t, "", "eval", "--dir", dir, "--fraction", "1", "--seed", "42", "--k", "20", "--examples", "2", "--json")
	require.NoError(t, err)
	var report struct {
		Metrics struct {
			Questions int `json:"total_questions_evaluated"`
			K         int `json:"search_k"`
		} `json:"metrics"`
		Examples []json.RawMessage `json:"examples"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 4, report.Metrics.Questions)
	assert.Equal(t, 4, report.Metrics.K)
	assert.Len(t, report.Examples, 2)

	out, err = execute(t, "", "eval", "--dir", dir, "--fraction", "0.5", "--seed", "42", "--k", "3", "--examples", "0", "--json=false")
	require.NoError(t, err)
	assert.Contains(t, out, "- Questions evaluated: 2")
	assert.Contains(t, out, "Mean Reciprocal Rank")

	out, err = execute(t, "সূর্য কোন দিকে ওঠে\n\nq\nনা পড়া\n", "interactive", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Results for: 'সূর্য কোন দিকে ওঠে'")
	assert.Contains(t, out, "Rank 1: সূর্য কোন দিকে ওঠে?")
	assert.Contains(t, out, "Goodbye!")
	assert.NotContains(t, out, "না পড়া")
}

func TestStatsWithoutBundle(t *testing.T) {
	dir := setupDataDir(t)
	_, err := execute(t, "", "stats", "--dir", dir, "--json=false")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "qbank index")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abc", 2))
	assert.Equal(t, "বাং...", truncate("বাংলা", 3))
}
