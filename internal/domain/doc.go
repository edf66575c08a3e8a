// Package domain models the flood-risk forecast: soil-moisture observations,
// the synthetic rainfall model, and the daily risk classification.
//
// # Data Source
//
// Soil moisture is a proxy derived from Sentinel-1 radar scenes listed by a
// STAC catalog (see adapter/imagery). The catalog is searched for the newest
// VV-polarised scene over the query point within a trailing 14-day window.
// The catalog's answer is one of four [ImageryResult] variants, collapsed into
// a [MoistureObservation] by [ResolveObservation]:
//
//	LiveScene          moisture = stable(sceneID, 0.4, 0.9), date = acquisition date, "live"
//	ArchiveGap         moisture = 0.45, date = 2024-01-27,                         "archive-gap"
//	Unreachable        moisture = stable("lat_lon", 0.3, 0.8), date = today - 3,    "offline-simulated"
//	ConnectionFailure  same formula as Unreachable,                                 "connection-error"
//
// "lat_lon" is both coordinates formatted with four decimals, e.g.
// "-6.2000_106.8167". The archive gap is a known degraded mode (an orbit gap:
// no satellite pass over the point recently), not an error.
//
// # Stable Values
//
// [StableValue] maps a string key to [min, max) through a content digest:
//
//	u = D / 2^128     D = first 128 bits of digest(key), read big-endian
//	v = min + u * (max - min)
//
// The digest is versioned ([Digest]). DigestMD5 reproduces the values issued by
// the first deployment bit-for-bit and is the default. Switching the digest
// changes every rainfall and fallback moisture value for every coordinate, so
// the version travels with each forecast as meta.generator.
//
// # Risk
//
//	rain  = stable(latRepr + lonRepr + "YYYY-MM-DD", 0, 80)    one value per day
//	risk  = min(moisture*40 + rain*0.5, 98.5)
//
// latRepr/lonRepr use the shortest round-trip decimal form with a trailing
// ".0" for integral values ("-6.2", "106.8167", "100.0"). Classification:
//
//	risk > 70        DANGER  "BAHAYA"  css "danger"
//	40 < risk <= 70  WATCH   "SIAGA"   css "warning"
//	otherwise        SAFE    "AMAN"    css "safe"
//
// The window-level status is the maximum day level (SAFE < WATCH < DANGER).
// The AMAN/SIAGA/BAHAYA tokens are the wire vocabulary of existing consumers
// and must not be translated.
package domain
