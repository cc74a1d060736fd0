package adx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/txn2/mcp-kusto/pkg/kusto"
)

// Frame and table kinds of the v2 query response.
const (
	frameDataTable         = "DataTable"
	frameTableHeader       = "TableHeader"
	frameTableFragment     = "TableFragment"
	frameDataSetCompletion = "DataSetCompletion"
	kindPrimaryResult      = "PrimaryResult"
)

type frameColumn struct {
	ColumnName string
	ColumnType string
}

// frame is the union of the v2 frame fields this package reads.
type frame struct {
	FrameType    string
	TableID      int `json:"TableId"`
	TableKind    string
	TableName    string
	Columns      []frameColumn
	Rows         []json.RawMessage
	HasErrors    bool
	OneAPIErrors []json.RawMessage `json:"OneApiErrors"`
	FragmentType string            `json:"TableFragmentType"`
	Cancelled    bool
}

// decodeFrames turns a v2 query response into its primary result tables.
// Tables keep their header columns even when they have no rows.
func decodeFrames(data []byte) (*kusto.QueryResult, error) {
	var frames []frame
	if err := json.Unmarshal(data, &frames); err != nil {
		return nil, fmt.Errorf("decoding query response: %w", err)
	}

	res := &kusto.QueryResult{}
	open := map[int]int{}
	for _, f := range frames {
		switch f.FrameType {
		case frameDataTable, frameTableHeader:
			if f.TableKind != kindPrimaryResult {
				continue
			}
			t := kusto.ResultTable{Name: f.TableName, Columns: make([]kusto.ResultColumn, len(f.Columns))}
			for i, c := range f.Columns {
				t.Columns[i] = kusto.ResultColumn{Name: c.ColumnName, Type: c.ColumnType}
			}
			rows, err := decodeRows(f.Rows)
			if err != nil {
				return nil, err
			}
			t.Rows = rows
			open[f.TableID] = len(res.Tables)
			res.Tables = append(res.Tables, t)
		case frameTableFragment:
			idx, ok := open[f.TableID]
			if !ok {
				continue
			}
			rows, err := decodeRows(f.Rows)
			if err != nil {
				return nil, err
			}
			if f.FragmentType == "DataReplace" {
				res.Tables[idx].Rows = rows
			} else {
				res.Tables[idx].Rows = append(res.Tables[idx].Rows, rows...)
			}
		case frameDataSetCompletion:
			if f.HasErrors || f.Cancelled {
				return nil, completionError(f)
			}
		}
	}
	return res, nil
}

// decodeRows converts row arrays to values. An object in place of a row
// carries the error that stopped the query.
func decodeRows(raw []json.RawMessage) ([][]any, error) {
	rows := make([][]any, 0, len(raw))
	for _, r := range raw {
		r = bytes.TrimSpace(r)
		if len(r) > 0 && r[0] == '{' {
			return nil, fmt.Errorf("query failed: %s", r)
		}
		var cells []json.RawMessage
		if err := json.Unmarshal(r, &cells); err != nil {
			return nil, fmt.Errorf("decoding result row: %w", err)
		}
		row := make([]any, len(cells))
		for i, c := range cells {
			v, err := decodeCell(c)
			if err != nil {
				return nil, err
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// decodeCell keeps scalars as scalars and dynamic values as their JSON
// text.
func decodeCell(raw json.RawMessage) (any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	switch raw[0] {
	case 'n':
		return nil, nil
	case '{', '[':
		return string(raw), nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decoding result cell: %w", err)
		}
		return s, nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("decoding result cell: %w", err)
		}
		return b, nil
	default:
		return json.Number(raw), nil
	}
}

func completionError(f frame) error {
	if len(f.OneAPIErrors) > 0 {
		errs := make([]error, len(f.OneAPIErrors))
		for i, e := range f.OneAPIErrors {
			errs[i] = fmt.Errorf("query failed: %s", bytes.TrimSpace(e))
		}
		return errors.Join(errs...)
	}
	if f.Cancelled {
		return errors.New("query was cancelled")
	}
	return errors.New("query completed with errors")
}
