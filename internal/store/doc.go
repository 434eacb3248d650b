// Package store holds the collection of download entries shown in the table.
//
// [Store] keeps entries in arrival order with an id index. [Store.SortedFiltered] is a pure
// query over that state: sort and search are parameters, never stored. The UI keeps its
// current sort and search in a [View], and the selection anchor in a [Selection].
package store
