// package models defines the data model for the favorites download pipeline.
//
// FavoriteItem is the unit of work produced by the catalog listing, LedgerEntry
// the persisted record of a terminal outcome, and CycleStats the per-cycle
// accounting exposed to the dashboard.
package models
