// Package nmea decodes logged instrument sentences into sample.RawRecord.
//
// Only the four sentences the boat's instrument bus logs are understood:
//   - $GNRMC position, speed and course over ground
//   - $IIVHW speed through water
//   - $IIMWV apparent wind angle and speed
//   - $IIHDG heading
//
// Anything else, and any sentence with a field that does not convert, is a
// skip: the whole sentence is dropped and no partial record is produced.
package nmea
