// Package reaction defines the immutable chemistry value types shared by every
// analysis in metnet: Compound, Direction and Reaction.
//
// A Reaction is a direction plus a list of (compound, coefficient) terms.
// Negative coefficients are consumed, positive coefficients are produced, so
// the reaction
//
//	|A| + (2) |B| => |C[e]|
//
// has terms A:-1, B:-2, C[e]:+1 and direction Forward.
//
// # Notation
//
// Parse reads the textual notation used by reaction tables:
//
//   - compounds are written between pipes, an optional compartment follows in
//     square brackets: |glc-D[e]|;
//   - an optional coefficient in parentheses precedes the compound: (2), (0.5), (1/3);
//   - terms on one side are joined with '+';
//   - the direction token is one of "=>", "<=" or "<=>".
//
// Either side may be empty ("|D| =>" is a sink, "=> (2) |A|" a source).
// String renders a Reaction back in the same notation, so Parse(r.String())
// yields an equal Reaction.
//
// # Errors
//
//	ErrSyntax           - malformed notation (wrapped with position details).
//	ErrZeroCoefficient  - a term with coefficient 0.
//	ErrEmptyCompound    - a compound with an empty name.
package reaction
