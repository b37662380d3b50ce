package types

// MessageKind distinguishes requests from responses on the bus.
type MessageKind string

const (
	MessageRequest  MessageKind = "request"
	MessageResponse MessageKind = "response"
)

// PayloadKind tags the active variant of a message payload. Exactly one
// variant field of Payload is populated for a given kind; agents switch on
// the tag instead of sniffing for map keys.
type PayloadKind string

const (
	// PayloadRawQuery carries a natural-language request to be answered.
	PayloadRawQuery PayloadKind = "raw_query"
	// PayloadTablesContext carries a request plus resolved table metadata,
	// ready for SQL construction.
	PayloadTablesContext PayloadKind = "tables_context"
	// PayloadTableLookup asks the catalog to describe a single table.
	PayloadTableLookup PayloadKind = "table_lookup"
	// PayloadTableDetail answers a table lookup.
	PayloadTableDetail PayloadKind = "table_detail"
	// PayloadGetResults asks the builder for a cached run snapshot.
	PayloadGetResults PayloadKind = "get_results"
	// PayloadExecution carries an executed query's outcome back upstream.
	PayloadExecution PayloadKind = "execution"
)

// RawQuery is the payload for PayloadRawQuery.
type RawQuery struct {
	Text     string
	Callback string // agent to answer instead of the sender, when set
}

// TablesContext is the payload for PayloadTablesContext.
type TablesContext struct {
	Text           string
	Relevant       []string
	Tables         map[string]TableInfo
	OriginalSender string
}

// TableLookup is the payload for PayloadTableLookup.
type TableLookup struct {
	Name string
}

// TableDetail is the payload for PayloadTableDetail.
type TableDetail struct {
	Name string
	Info *TableInfo // nil when the table is unknown
}

// GetResults is the payload for PayloadGetResults. An empty RunID asks for
// the most recent snapshot.
type GetResults struct {
	RunID string
}

// Execution is the payload for PayloadExecution.
type Execution struct {
	RunID       string
	Result      *QueryResult
	SQL         string
	Explanation string
	Text        string
	CSVPath     string
}

// Payload is a tagged union of the message bodies agents exchange.
type Payload struct {
	Kind PayloadKind

	RawQuery      *RawQuery
	TablesContext *TablesContext
	TableLookup   *TableLookup
	TableDetail   *TableDetail
	GetResults    *GetResults
	Execution     *Execution
}

// Message is the immutable envelope passed between agents. The ID is used
// only for logging and tracing; routing uses Sender and Receiver names.
type Message struct {
	ID       string
	Sender   string
	Receiver string
	Kind     MessageKind
	Payload  Payload
}
