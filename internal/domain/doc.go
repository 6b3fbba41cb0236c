// Package domain models the proximity-gated claim workflow of the Capy Quest
// location game: coordinates, claim targets, eligibility decisions, wallet
// state, and the ports the claim core talks to.
//
// # Coordinates
//
// Coordinates are WGS-84 latitude/longitude pairs in decimal degrees. The NFT
// distribution service stores target locations as a single string:
//
//	"<lat>,<lng>"  →  e.g. "40.4168,-3.7038"
//
// Whitespace around either component is tolerated. Latitude must lie in
// [-90, 90] and longitude in [-180, 180]; anything else is rejected by
// [ParseCoordinate]. JSON encodes a Coordinate as {"lat":..,"lng":..}, the
// same shape the game client persists in session storage.
//
// # Distance
//
// [DistanceMeters] uses the haversine formula on a sphere with the IUGG mean
// Earth radius (6,371,008.8 m). Claim radii are tens of meters, where the
// spherical error against the ellipsoid stays below 0.5%.
//
// Reference scenario, one ten-thousandth of a degree of latitude:
//
//	(40.0000, -3.0000) → (40.0001, -3.0000)  ≈ 11.1 m
//	(40.0000, -3.0000) → (40.0100, -3.0000)  ≈ 1112 m
//
// # Eligibility
//
// [EvaluateEligibility] is inclusive at the boundary: a player standing
// exactly on the radius may claim. The decision carries the measured distance
// so callers can report "you are 1112.00 meters away".
//
// # Chain identifiers
//
// Chain ids travel as EIP-695 hex quantities ("0x507" is Moonbase Alpha,
// decimal 1287). Wallets are inconsistent about leading zeros, so ids are
// compared numerically by [SameChain].
//
// # Token amounts
//
// The game token (CYC) has 18 decimals. [FormatUnits] and [ParseUnits] convert
// between base units and display strings without floating point.
package domain
