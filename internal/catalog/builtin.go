package catalog

import "wrdsquery/internal/types"

// builtinTables is the hand-curated fallback catalog covering the standard
// price, fundamentals, and estimates tables. It keeps the system usable
// when no schema snapshot has been extracted yet.
func builtinTables() map[string]types.TableInfo {
	tables := map[string]types.TableInfo{
		"crsp.dsf": {
			Description: "CRSP Daily Stock File - daily price, return, and volume data for stocks",
			Fields: map[string]string{
				"permno": "CRSP permanent security number",
				"date":   "Trading date",
				"prc":    "Closing price (negative values are bid/ask midpoints)",
				"ret":    "Holding period return",
				"vol":    "Share volume",
			},
			PrimaryKeys: []string{"permno", "date"},
			LinkingInfo: map[string]types.JoinKey{
				"crsp.dsenames": {From: "permno", To: "permno"},
			},
		},
		"crsp.msf": {
			Description: "CRSP Monthly Stock File - monthly price, return, and volume data for stocks",
			Fields: map[string]string{
				"permno": "CRSP permanent security number",
				"date":   "Trading date",
				"prc":    "Closing price",
				"ret":    "Holding period return",
				"vol":    "Share volume",
			},
			PrimaryKeys: []string{"permno", "date"},
			LinkingInfo: map[string]types.JoinKey{
				"crsp.msenames": {From: "permno", To: "permno"},
			},
		},
		"crsp.dsenames": {
			Description: "CRSP Daily Stock Event Names - name history and identifier information",
			Fields: map[string]string{
				"permno":   "CRSP permanent security number",
				"ticker":   "Ticker symbol",
				"namedt":   "Name start date",
				"nameendt": "Name end date",
				"cusip":    "CUSIP identifier",
			},
			PrimaryKeys: []string{"permno", "namedt"},
			LinkingInfo: map[string]types.JoinKey{
				"crsp.dsf": {From: "permno", To: "permno"},
			},
		},
		"crsp.msenames": {
			Description: "CRSP Monthly Stock Event Names - name history and identifier information",
			Fields: map[string]string{
				"permno":   "CRSP permanent security number",
				"ticker":   "Ticker symbol",
				"namedt":   "Name start date",
				"nameendt": "Name end date",
				"cusip":    "CUSIP identifier",
			},
			PrimaryKeys: []string{"permno", "namedt"},
			LinkingInfo: map[string]types.JoinKey{
				"crsp.msf": {From: "permno", To: "permno"},
			},
		},
		"comp.funda": {
			Description: "Compustat Fundamentals Annual - annual financial statement data",
			Fields: map[string]string{
				"gvkey":    "Global company key",
				"datadate": "Data date",
				"fyear":    "Fiscal year",
				"tic":      "Ticker symbol",
				"at":       "Total assets",
				"lt":       "Total liabilities",
				"sale":     "Net sales",
				"ni":       "Net income",
			},
			PrimaryKeys: []string{"gvkey", "datadate"},
			LinkingInfo: map[string]types.JoinKey{
				"comp.company": {From: "gvkey", To: "gvkey"},
			},
		},
		"comp.fundq": {
			Description: "Compustat Fundamentals Quarterly - quarterly financial statement data",
			Fields: map[string]string{
				"gvkey":    "Global company key",
				"datadate": "Data date",
				"fyearq":   "Fiscal year of quarter",
				"fqtr":     "Fiscal quarter",
				"tic":      "Ticker symbol",
				"niq":      "Net income (quarterly)",
			},
			PrimaryKeys: []string{"gvkey", "datadate", "fyearq", "fqtr"},
			LinkingInfo: map[string]types.JoinKey{
				"comp.company": {From: "gvkey", To: "gvkey"},
			},
		},
		"comp.company": {
			Description: "Compustat Company Information - static company descriptors",
			Fields: map[string]string{
				"gvkey": "Global company key",
				"conm":  "Company name",
				"tic":   "Ticker symbol",
				"sic":   "Standard industry classification code",
			},
			PrimaryKeys: []string{"gvkey"},
			LinkingInfo: map[string]types.JoinKey{
				"comp.funda": {From: "gvkey", To: "gvkey"},
				"comp.fundq": {From: "gvkey", To: "gvkey"},
			},
		},
		"ibes.statsum": {
			Description: "IBES Summary Statistics - analyst estimates and forecast summaries",
			Fields: map[string]string{
				"ticker":   "IBES ticker",
				"fpedats":  "Forecast period end date",
				"statpers": "Statistical period",
				"measure":  "Forecast measure (e.g. EPS)",
				"meanest":  "Mean estimate",
				"medest":   "Median estimate",
				"numest":   "Number of estimates",
			},
			PrimaryKeys: []string{"ticker", "fpedats", "statpers", "measure"},
			LinkingInfo: map[string]types.JoinKey{},
		},
	}

	for name, info := range tables {
		info.Name = name
		tables[name] = info
	}
	return tables
}
