// Package config loads process settings from the environment and the
// per-table ingestion configuration from a YAML file.
//
// Settings are read once at startup by LoadSettings and handed to every
// component explicitly. The tables file has two top-level keys:
//
//	defaults:
//	  encoding: cp932
//	  chunksize: 100000
//	tables:
//	  orders:
//	    folder: namespace=shop/table=orders
//	    primary_key: [order_id]
//
// Each table entry is merged over defaults key by key.
package config
