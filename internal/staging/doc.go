// Package staging fills a transaction-scoped temporary table from CSV files
// and removes duplicate keys before the merge into the target.
//
// The staging table has the target's columns, all TEXT, and is dropped on
// commit or rollback. Rows are streamed with the COPY protocol in chunks;
// empty strings become NULL and rows with a NULL key are skipped.
package staging
