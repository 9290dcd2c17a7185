// Package market defines the closed set of markets, data types, kline intervals and
// frequencies published by the archive, the column schema for each header-less
// (market, data type) pair, and the ArchiveKey that names one dated archive.
package market
