package domain

// NumOptions is the fixed number of answer options per question.
const NumOptions = 5

// QuestionRecord is one row of the question bank. Absent values are nil.
type QuestionRecord struct {
	ID              *int64              `json:"id"`
	QuestionID      *int64              `json:"question_id"`
	Question        string              `json:"question"`
	QuestionCleaned string              `json:"question_cleaned"`
	Options         [NumOptions]*string `json:"options"`
	AnswerRaw       *string             `json:"answer"`
	Explanation     *string             `json:"explanation"`
	Difficulty      *int64              `json:"difficulty"`
}

// Option returns option n (1-based), or nil when n is out of range or the option is empty.
func (r QuestionRecord) Option(n int) *string {
	if n < 1 || n > NumOptions {
		return nil
	}
	return r.Options[n-1]
}

// ResultRecord is one ranked search hit.
type ResultRecord struct {
	Rank            int     `json:"rank"`
	ID              *int64  `json:"id"`
	QuestionID      *int64  `json:"question_id"`
	Question        string  `json:"question"`
	QuestionCleaned string  `json:"question_cleaned"`
	Option1         *string `json:"option_1"`
	Option2         *string `json:"option_2"`
	Option3         *string `json:"option_3"`
	Option4         *string `json:"option_4"`
	Option5         *string `json:"option_5"`
	Answer          *string `json:"answer"`
	AnswerText      *string `json:"answer_text"`
	Explanation     *string `json:"explanation"`
	Difficulty      *int64  `json:"difficulty"`
	SimilarityScore float64 `json:"similarity_score"`
	Distance        float64 `json:"distance"`
}

// Options returns the five option fields in order.
func (r ResultRecord) Options() [NumOptions]*string {
	return [NumOptions]*string{r.Option1, r.Option2, r.Option3, r.Option4, r.Option5}
}

// Stats describes the current engine state.
type Stats struct {
	TotalQuestions     int    `json:"total_questions"`
	ModelName          string `json:"model_name"`
	EmbeddingDimension *int   `json:"embedding_dimension"`
	HasEmbeddings      bool   `json:"has_embeddings"`
	HasIndex           bool   `json:"has_index"`
}

// Answer is the best match for a question plus the runners-up.
type Answer struct {
	Query        string         `json:"query"`
	Answer       *string        `json:"answer"`
	Match        *ResultRecord  `json:"match"`
	Alternatives []ResultRecord `json:"alternatives"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 {
	return &v
}
