// Package domain models Kenyan county-level climate, soil and maize yield
// data and the rules that turn them into a monthly master dataset.
//
// # Data Sources
//
// Hourly weather comes from the Open-Meteo historical archive, sampled at a
// representative coordinate per county and stored one CSV per county
// (weather_data_<slug>.csv). Soil properties come from a point survey that
// is labelled with a county by coordinate. Monthly rainfall is sampled from
// gridded rasters at county centroids. Maize area, production and yield are
// annual per-county figures.
//
// # Keys
//
// Every monthly table is keyed by (County, Year, Month). County names are
// canonicalized against the 47-county list ([Counties]); records that do
// not resolve to a canonical county are dropped, never guessed.
//
// # Hourly Heuristics
//
// Water stress is a bounded heuristic score, not a physical measurement:
//
//	precipitation <= 0           -> Max (0.86)
//	otherwise Base (0.73) plus
//	  temperature above 25 C     -> min(0.3, (t-25)*0.06)
//	  evapotranspiration above 5 -> min(0.3, (e-5)*0.06)
//	  rainfall below 50 mm       -> min(0.4, (50-r)*0.008)
//	  humidity below 60 %        -> (60-h)*0.002
//	clamped to [Base, Max]
//
// Irrigation is needed when rainfall is below 10 mm and stress exceeds
// 0.75. The volume and yield impact come from stress tiers. An hour above
// 30 C counts as one heat-stress unit; monthly sums therefore count hours.
// All constants live in [Heuristics] and can be overridden from YAML.
//
// # Monthly Aggregation
//
// Means and sums skip missing values. A column with no values in a month
// stays empty rather than becoming zero. Hourly irrigation decisions are
// collapsed with a vote policy ([VoteAny] by default).
//
// # Master Dataset
//
// The monthly weather aggregate is the base table. Yield (broadcast over the
// twelve months of its year), soil (broadcast over every month) and raster
// rainfall are left-joined onto it, so every base row appears exactly once.
// Composite scores use neutral defaults when an input is missing.
package domain
