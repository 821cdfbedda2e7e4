// Package scale models the asymptotic size of a term as T^{E(theta)} times
// an integer power of log T.
//
// E(theta) is a symbolic expression in the single free parameter theta.
// The algebra is asymptotic: products add exponents and log powers, sums
// take the dominant exponent. When dominance depends on theta the sum is
// kept as an explicit max node rather than resolved by guessing.
//
// All exponent arithmetic in the repository funnels through this package.
// No other package constructs or parses exponent expressions directly;
// the math/big rational backend is an implementation detail confined here.
package scale
