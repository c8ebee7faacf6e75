package ledgertest

import (
	"context"
	"encoding/binary"

	"github.com/iov-one/idgov"
	"github.com/iov-one/idgov/contract"
	"github.com/iov-one/idgov/errors"
	"github.com/iov-one/idgov/ptb"
	"github.com/iov-one/idgov/store"
)

type valueKind uint8

const (
	pureValue valueKind = iota + 1
	objectValue
	receivingValue
	actionValue
	gasValue
)

// value is a command argument or result living for the duration of a
// transaction.
type value struct {
	kind valueKind
	raw  []byte
	obj  *liveObject
	// mutable is false for shared objects passed by immutable reference.
	mutable bool
	ref     idgov.ObjectRef
	action  *hotAction
}

// liveObject is an object loaded or created by a transaction.
type liveObject struct {
	data    idgov.ObjectData
	content interface{}
	// owner is the owner the object had before the transaction.
	owner   idgov.Owner
	existed bool
	mutated bool
	deleted bool
	// taken objects are held by value and must be transferred, returned
	// or destroyed before the transaction ends.
	taken bool
}

// hotAction is the payload of an executed proposal. It cannot be stored and
// must be consumed within the transaction that executed the proposal.
type hotAction struct {
	identity idgov.ObjectID
	payload  contract.Action
	// out holds objects taken from the identity. Lent objects leave it when
	// returned, sent objects stay.
	out      map[idgov.ObjectID]bool
	consumed bool
}

type execution struct {
	db      store.KVStore
	router  *Router
	pkg     idgov.ObjectID
	sender  idgov.Address
	epoch   uint64
	version uint64
	digest  idgov.Digest
	created uint64

	// packages holds every published version of the contract.
	packages []idgov.ObjectID

	inputs  []*value
	results [][]*value
	objects map[idgov.ObjectID]*liveObject
	// order keeps effects deterministic.
	order   []idgov.ObjectID
	actions []*hotAction
	events  []idgov.Event
}

// Execute runs a serialized fragment as sender. Failed executions are
// reported by the effects status and leave the ledger state untouched.
func (l *Ledger) Execute(ctx context.Context, sender idgov.Address, tx []byte, gasBudget uint64) (*idgov.TxResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrRpc, err.Error())
	}
	f, err := ptb.Unmarshal(tx)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	version := l.version + 1
	seq := make([]byte, 8)
	binary.BigEndian.PutUint64(seq, version)
	digest := idgov.NewDigest(tx, sender[:], seq)

	resp := &idgov.TxResponse{
		Effects: idgov.Effects{
			TxDigest: digest,
			GasUsed:  uint64(len(f.Commands)) * GasPerCommand,
		},
	}
	if resp.Effects.GasUsed > gasBudget {
		resp.Effects.GasUsed = gasBudget
		resp.Effects.Status.Error = errors.ErrInput.Newf("insufficient gas: budget %d", gasBudget).Error()
		return resp, nil
	}

	cache := l.db.CacheWrap()
	ex := &execution{
		db:      cache,
		router:  l.router,
		pkg:     l.pkg,
		sender:  sender,
		epoch:   l.epoch,
		version: version,
		digest:  digest,
		objects: make(map[idgov.ObjectID]*liveObject),

		packages: l.packages(),
	}
	if err := ex.run(f); err != nil {
		cache.Discard()
		l.logger.Debug("transaction failed", "digest", digest.String(), "err", err)
		resp.Effects.Status.Error = err.Error()
		return resp, nil
	}
	if err := ex.commit(&resp.Effects); err != nil {
		cache.Discard()
		return nil, errors.Wrap(err, "commit")
	}
	if err := cache.Write(); err != nil {
		return nil, errors.Wrap(err, "write")
	}
	l.version = version
	resp.Effects.Status.Success = true
	resp.Events = ex.events
	l.logger.Debug("transaction executed", "digest", digest.String(),
		"created", len(resp.Effects.Created),
		"mutated", len(resp.Effects.Mutated),
		"deleted", len(resp.Effects.Deleted))
	return resp, nil
}

func (ex *execution) run(f *ptb.Fragment) error {
	ex.inputs = make([]*value, len(f.Inputs))
	for i, in := range f.Inputs {
		v, err := ex.resolveInput(in)
		if err != nil {
			return errors.Wrapf(err, "input %d", i)
		}
		ex.inputs[i] = v
	}
	for i, c := range f.Commands {
		res, err := ex.command(c)
		if err != nil {
			return errors.Wrapf(err, "command %d (%s)", i, c)
		}
		ex.results = append(ex.results, res)
	}
	return ex.finish()
}

func (ex *execution) resolveInput(in ptb.Input) (*value, error) {
	if in.Kind == ptb.PureInput {
		return &value{kind: pureValue, raw: in.Pure}, nil
	}

	arg := in.Object
	switch arg.Kind {
	case ptb.ReceivingObject:
		return &value{kind: receivingValue, ref: arg.Ref}, nil
	case ptb.ImmOrOwnedObject:
		obj, err := ex.load(arg.Ref.ID)
		if err != nil {
			return nil, err
		}
		if err := checkRef(obj, arg.Ref); err != nil {
			return nil, err
		}
		switch {
		case obj.data.Owner.IsOwnedBy(ex.sender):
			obj.mutated = true
			return &value{kind: objectValue, obj: obj, mutable: true}, nil
		case obj.data.Owner.Kind == idgov.Immutable:
			return &value{kind: objectValue, obj: obj}, nil
		}
		return nil, errors.WithObject(errors.ErrUnauthorized.Newf("not owned by %s", ex.sender), "object", arg.Ref.ID)
	case ptb.SharedObject:
		obj, err := ex.load(arg.Ref.ID)
		if err != nil {
			return nil, err
		}
		if obj.data.Owner.Kind != idgov.Shared {
			return nil, errors.WithObject(errors.ErrInput.New("object is not shared"), "object", arg.Ref.ID)
		}
		if obj.data.Owner.InitialSharedVersion != arg.InitialSharedVersion {
			return nil, errors.WithObject(errors.ErrInput.Newf("initial shared version is %d", obj.data.Owner.InitialSharedVersion), "object", arg.Ref.ID)
		}
		if arg.Mutable {
			obj.mutated = true
		}
		return &value{kind: objectValue, obj: obj, mutable: arg.Mutable}, nil
	}
	return nil, errors.ErrInput.Newf("unknown object argument kind %d", arg.Kind)
}

// checkRef ensures that a transaction references the current version of an
// object.
func checkRef(obj *liveObject, ref idgov.ObjectRef) error {
	if obj.data.Ref.Version != ref.Version {
		return errors.WithObject(errors.ErrState.Newf("stale reference: version %d, current %d", ref.Version, obj.data.Ref.Version), "object", ref.ID)
	}
	if ref.Digest != (idgov.Digest{}) && ref.Digest != obj.data.Ref.Digest {
		return errors.WithObject(errors.ErrState.New("stale reference: digest mismatch"), "object", ref.ID)
	}
	return nil
}

func (ex *execution) command(c ptb.Command) ([]*value, error) {
	switch c := c.(type) {
	case ptb.MoveCall:
		if !containsID(ex.packages, c.Package) {
			return nil, errors.ErrNotFound.Newf("package %s", c.Package)
		}
		h := ex.router.Handler(c.Target())
		if h == nil {
			return nil, errors.ErrNotFound.Newf("function %s", c.Target())
		}
		args, err := ex.arguments(c.Args)
		if err != nil {
			return nil, err
		}
		return h(ex, c, args)
	case ptb.TransferObjects:
		objects, err := ex.arguments(c.Objects)
		if err != nil {
			return nil, err
		}
		dest, err := ex.argument(c.Address)
		if err != nil {
			return nil, err
		}
		var recipient idgov.Address
		if err := ex.pure(dest, &recipient); err != nil {
			return nil, err
		}
		for _, v := range objects {
			if err := ex.transfer(v, recipient); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}
	return nil, errors.ErrInput.Newf("unsupported command %T", c)
}

func (ex *execution) arguments(args []ptb.Argument) ([]*value, error) {
	res := make([]*value, len(args))
	for i, a := range args {
		v, err := ex.argument(a)
		if err != nil {
			return nil, errors.Wrapf(err, "argument %d", i)
		}
		res[i] = v
	}
	return res, nil
}

func (ex *execution) argument(a ptb.Argument) (*value, error) {
	switch a.Kind {
	case ptb.GasCoinArg:
		return &value{kind: gasValue}, nil
	case ptb.InputArg:
		return ex.inputs[a.Index], nil
	case ptb.ResultArg:
		res := ex.results[a.Index]
		if len(res) != 1 {
			return nil, errors.ErrInput.Newf("%s: command returned %d values", a, len(res))
		}
		return res[0], nil
	case ptb.NestedResultArg:
		res := ex.results[a.Index]
		if int(a.Nested) >= len(res) {
			return nil, errors.ErrInput.Newf("%s: command returned %d values", a, len(res))
		}
		return res[a.Nested], nil
	}
	return nil, errors.ErrInput.Newf("unknown argument kind %d", a.Kind)
}

// contractVersion returns the version of the latest published contract.
func (ex *execution) contractVersion() uint64 {
	return uint64(len(ex.packages))
}

// finish ensures that no value without drop ability survived the
// transaction.
func (ex *execution) finish() error {
	for _, a := range ex.actions {
		if !a.consumed {
			return errors.ErrState.Newf("unused action %T", a.payload)
		}
	}
	for _, id := range ex.order {
		if ex.objects[id].taken {
			return errors.WithObject(errors.ErrState.New("object was neither transferred, returned nor destroyed"), "object", id)
		}
	}
	return nil
}

func (ex *execution) commit(effects *idgov.Effects) error {
	for _, id := range ex.order {
		obj := ex.objects[id]
		switch {
		case obj.deleted:
			if !obj.existed {
				continue
			}
			if err := deleteObject(ex.db, obj.owner, id); err != nil {
				return err
			}
			effects.Deleted = append(effects.Deleted, obj.data.Ref)
		case !obj.existed:
			if err := ex.save(obj, nil); err != nil {
				return err
			}
			effects.Created = append(effects.Created, idgov.OwnedObjectRef{Ref: obj.data.Ref, Owner: obj.data.Owner})
		case obj.mutated:
			if err := ex.save(obj, &obj.owner); err != nil {
				return err
			}
			effects.Mutated = append(effects.Mutated, idgov.OwnedObjectRef{Ref: obj.data.Ref, Owner: obj.data.Owner})
		}
	}
	return nil
}

func (ex *execution) save(obj *liveObject, previous *idgov.Owner) error {
	if obj.content != nil {
		raw, err := contract.Encode(obj.content)
		if err != nil {
			return err
		}
		obj.data.Content = raw
	}
	obj.data.Ref.Version = ex.version
	obj.data.Ref.Digest = objectDigest(&obj.data)
	return saveObject(ex.db, previous, &obj.data)
}

// load returns the transaction view of an object.
func (ex *execution) load(id idgov.ObjectID) (*liveObject, error) {
	if obj, ok := ex.objects[id]; ok {
		if obj.deleted {
			return nil, errors.WithObject(errors.ErrNotFound.New("object was deleted"), "object", id)
		}
		return obj, nil
	}
	data, err := loadObject(ex.db, id)
	if err != nil {
		return nil, err
	}
	content, err := decodeContent(ex.pkg, data)
	if err != nil {
		return nil, err
	}
	obj := &liveObject{data: *data, content: content, owner: data.Owner, existed: true}
	ex.track(obj)
	return obj, nil
}

func (ex *execution) track(obj *liveObject) {
	ex.objects[obj.data.Ref.ID] = obj
	ex.order = append(ex.order, obj.data.Ref.ID)
}

// decodeContent returns the decoded layout of contract objects. Objects of
// other packages are opaque and have nil content.
func decodeContent(pkg idgov.ObjectID, obj *idgov.ObjectData) (interface{}, error) {
	var dest interface{}
	switch obj.Type {
	case contract.IdentityType(pkg):
		dest = &contract.Identity{}
	case contract.ControllerCapType(pkg):
		dest = &contract.ControllerCap{}
	case contract.DelegationTokenType(pkg):
		dest = &contract.DelegationToken{}
	case AssetType(pkg):
		dest = &Asset{}
	default:
		if _, ok := contract.ProposalActionType(pkg, obj.Type); !ok {
			return nil, nil
		}
		dest = &contract.Proposal{}
	}
	if err := contract.Decode(obj.Content, dest); err != nil {
		return nil, errors.WithObject(err, "object", obj.Ref.ID)
	}
	return dest, nil
}

// newID derives a fresh object id from the transaction digest.
func (ex *execution) newID() idgov.ObjectID {
	ex.created++
	seq := make([]byte, 8)
	binary.BigEndian.PutUint64(seq, ex.created)
	return idgov.ObjectID(idgov.NewDigest(ex.digest[:], seq))
}

// create registers a new object. Shared objects get the transaction version
// as initial shared version.
func (ex *execution) create(id idgov.ObjectID, typ string, owner idgov.Owner, content interface{}) *liveObject {
	if owner.Kind == idgov.Shared {
		owner.InitialSharedVersion = ex.version
	}
	obj := &liveObject{
		data: idgov.ObjectData{
			Ref:   idgov.ObjectRef{ID: id},
			Type:  typ,
			Owner: owner,
		},
		content: content,
	}
	ex.track(obj)
	return obj
}

// transfer sends an object held by value or owned by the sender to recipient.
func (ex *execution) transfer(v *value, recipient idgov.Address) error {
	obj, err := ex.object(v)
	if err != nil {
		return err
	}
	if !obj.taken && !obj.data.Owner.IsOwnedBy(ex.sender) {
		return errors.WithObject(errors.ErrInput.Newf("%s object cannot be transferred", obj.data.Owner.Kind), "object", obj.data.Ref.ID)
	}
	obj.data.Owner = idgov.OwnedBy(recipient)
	obj.taken = false
	obj.mutated = true
	return nil
}

// receive takes an object owned by parent.
func (ex *execution) receive(parent idgov.Address, v *value) (*liveObject, error) {
	if v.kind != receivingValue {
		return nil, errors.ErrInput.New("receiving object argument expected")
	}
	obj, err := ex.load(v.ref.ID)
	if err != nil {
		return nil, err
	}
	if err := checkRef(obj, v.ref); err != nil {
		return nil, err
	}
	if !obj.data.Owner.IsOwnedBy(parent) || obj.taken {
		return nil, errors.WithObject(errors.ErrUnauthorized.Newf("not owned by %s", parent), "object", v.ref.ID)
	}
	obj.taken = true
	obj.mutated = true
	return obj, nil
}

// place returns an object taken from its owner.
func (ex *execution) place(obj *liveObject) {
	obj.taken = false
	obj.mutated = true
}

func (ex *execution) emit(ev contract.ProposalEvent) {
	ex.events = append(ex.events, idgov.Event{
		Type:     contract.ProposalEventType(ex.pkg),
		Sender:   ex.sender,
		Contents: contract.MustEncode(ev),
	})
}

func (ex *execution) pure(v *value, dest interface{}) error {
	if v.kind != pureValue {
		return errors.ErrInput.Newf("pure value expected for %T", dest)
	}
	return ptb.DecodePure(v.raw, dest)
}

func (ex *execution) pureResult(v interface{}) ([]*value, error) {
	raw, err := ptb.EncodePure(v)
	if err != nil {
		return nil, err
	}
	return []*value{{kind: pureValue, raw: raw}}, nil
}

func (ex *execution) object(v *value) (*liveObject, error) {
	if v.kind != objectValue {
		return nil, errors.ErrInput.New("object argument expected")
	}
	if v.obj.deleted {
		return nil, errors.WithObject(errors.ErrState.New("object was deleted"), "object", v.obj.data.Ref.ID)
	}
	return v.obj, nil
}

// mutable returns an object passed by mutable reference or by value.
func (ex *execution) mutable(v *value) (*liveObject, error) {
	obj, err := ex.object(v)
	if err != nil {
		return nil, err
	}
	if !v.mutable && !obj.taken {
		return nil, errors.WithObject(errors.ErrInput.New("object passed by immutable reference"), "object", obj.data.Ref.ID)
	}
	obj.mutated = true
	return obj, nil
}

func (ex *execution) hotAction(v *value) (*hotAction, error) {
	if v.kind != actionValue {
		return nil, errors.ErrInput.New("action argument expected")
	}
	if v.action.consumed {
		return nil, errors.ErrState.Newf("action %T was already consumed", v.action.payload)
	}
	return v.action, nil
}

func arity(args []*value, n int) error {
	if len(args) != n {
		return errors.ErrInput.Newf("%d arguments expected, got %d", n, len(args))
	}
	return nil
}

func typeArgument(call ptb.MoveCall) (string, error) {
	if len(call.TypeArguments) != 1 {
		return "", errors.ErrInput.Newf("one type argument expected, got %d", len(call.TypeArguments))
	}
	return call.TypeArguments[0], nil
}
