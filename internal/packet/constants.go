package packet

// SphinxPacketLength is the compile-time fixed size of a Sphinx packet,
// the constant against which Packet construction's size invariant
// (spec §4.2, §8 property 1) is checked. It mirrors the teacher's
// core/sphinx/constants.PacketLength.
const SphinxPacketLength = 3082

// NodeIDLength is the width of a mix node identifier, matching
// core/sphinx/constants.NodeIDLength.
const NodeIDLength = 32

// RecipientIDLength is the width of a user recipient identifier,
// matching core/sphinx/constants.RecipientIDLength.
const RecipientIDLength = 32

// SurbIDLength is the width of a SURB identifier, matching
// core/sphinx/constants.SURBIDLength.
const SurbIDLength = 16

// ReplayTagLength is the width of a replay tag emitted by the Sphinx
// unwrap primitive.
const ReplayTagLength = 32
