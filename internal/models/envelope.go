package models

// Envelope is the response to a bulk command: an overall flag plus one result per item.
type Envelope struct {
	Status bool         `json:"status"`
	Data   []ItemResult `json:"data"`
	Error  string       `json:"error,omitempty"`
}

// ItemResult reports one item of a bulk command. Data echoes the entry id.
type ItemResult struct {
	Status bool   `json:"status"`
	Data   int64  `json:"data"`
	Error  string `json:"error,omitempty"`
}

// BulkDeleteRequest is the body of a bulk delete call.
type BulkDeleteRequest struct {
	IDs []int64 `json:"ids"`
}

// ItemOK builds a successful item result.
func ItemOK(id int64) ItemResult {
	return ItemResult{Status: true, Data: id}
}

// ItemFailed builds a failed item result.
func ItemFailed(id int64, msg string) ItemResult {
	return ItemResult{Status: false, Data: id, Error: msg}
}

// Succeeded lists the ids whose own status is true, in response order.
func (e Envelope) Succeeded() []int64 {
	var ids []int64
	for _, item := range e.Data {
		if item.Status {
			ids = append(ids, item.Data)
		}
	}
	return ids
}

// Failed lists the items whose own status is false.
func (e Envelope) Failed() []ItemResult {
	var items []ItemResult
	for _, item := range e.Data {
		if !item.Status {
			items = append(items, item)
		}
	}
	return items
}
