package xpath

import (
	"github.com/midbel/xpc/xdm"
)

// coerce applies the function conversion rules to x for a value expected
// to be of type req at role. Mismatches that are certain are reported now;
// the others are left to a runtime check.
func coerce(env *Env, x Expr, req SequenceType, role Role) (Expr, error) {
	card := x.Cardinality()
	if card == Empty && !req.Card.Zero() {
		return nil, staticErrorf(role.ErrorCode(), "An empty sequence is not allowed as the %s", role.Message())
	}
	if card&req.Card == 0 && card != Empty {
		return nil, staticErrorf(role.ErrorCode(), "A sequence of more than one item is not allowed as the %s", role.Message())
	}
	if at, ok := req.Item.(AtomicItemType); ok {
		return coerceAtomic(env, x, req, at, role)
	}
	var (
		it  = x.ItemType()
		rel = env.Types().Relationship(req.Item, it)
	)
	if rel == Disjoint && !(card.Zero() && req.Card.Zero()) {
		return nil, staticErrorf(role.ErrorCode(), "Required item type of the %s is %s; supplied value has item type %s", role.Message(), req.Item, it)
	}
	if (rel == Same || rel == Subsumes) && req.Card.Subsumes(card) {
		return x, nil
	}
	treat := Treat{
		Operand: x,
		Type:    req,
		Role:    &role,
	}
	return &treat, nil
}

func coerceAtomic(env *Env, x Expr, req SequenceType, at AtomicItemType, role Role) (Expr, error) {
	var (
		th   = env.Types()
		it   = x.ItemType()
		card = x.Cardinality()
		err  error
	)
	if it.UType() == xdm.UFunction {
		return nil, staticErrorf(xdm.CodeFunctionAtomize, "Cannot atomize a function item supplied as the %s", role.Message())
	}
	switch {
	case !it.UType().SubsumedBy(xdm.UAtomic) && req.Card.Many():
		x, err = (&Atomizer{Operand: x}).check(env)
	case !it.UType().SubsumedBy(xdm.UAtomic) || (!req.Card.Many() && card.Many()) || (!req.Card.Zero() && card.Zero()):
		single := SingletonAtomizer{
			Operand:    x,
			Role:       role,
			AllowEmpty: req.Card.Zero(),
		}
		x, err = single.check(env)
	default:
	}
	if err != nil {
		return nil, err
	}
	it = x.ItemType()
	if (at.AtomicType == xdm.AnyAtomicType || th.IsSubType(it, at)) && req.Card.Subsumes(x.Cardinality()) {
		return x, nil
	}
	supplied, ok := it.(AtomicItemType)
	if ok && supplied.AtomicType != xdm.AnyAtomicType && supplied.AtomicType != xdm.UntypedAtomicType {
		if !promotable(supplied.AtomicType, at.AtomicType) && th.Disjoint(supplied, at) {
			return nil, staticErrorf(role.ErrorCode(), "Required item type of the %s is %s; supplied value has item type %s", role.Message(), at, supplied)
		}
	}
	treat := Treat{
		Operand: x,
		Type:    NewSequenceType(at, req.Card),
		Role:    &role,
		convert: true,
	}
	return &treat, nil
}

// promotable reports whether values of type from are promoted to type to
// when passed where to is expected.
func promotable(from, to *xdm.AtomicType) bool {
	switch {
	case to == xdm.DoubleType:
		return from.Numeric()
	case to == xdm.FloatType:
		return from.DerivesFrom(xdm.DecimalType)
	case to == xdm.StringType:
		return from == xdm.AnyURIType
	default:
		return false
	}
}

// convertAtomics casts untyped values and promotes numeric ones to the
// expected type. Other values are kept as they are.
func convertAtomics(seq xdm.Sequence, to *xdm.AtomicType) (xdm.Sequence, error) {
	if to == xdm.AnyAtomicType || to == xdm.UntypedAtomicType {
		return seq, nil
	}
	var res xdm.Sequence
	for _, i := range seq {
		a, ok := xdm.AsAtomic(i)
		if ok && !a.Type.DerivesFrom(to) && (a.Type == xdm.UntypedAtomicType || promotable(a.Type, to)) {
			c, err := xdm.Cast(a, to)
			if err != nil {
				return nil, err
			}
			i = c
		}
		res.Append(i)
	}
	return res, nil
}
