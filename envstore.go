package lagonlike

// LookupFunc retrieves a value by key from an environment store.
// Returns the value, or an empty string if the key is not present.
type LookupFunc func(key string) string

// envStore is a named key-value lookup exposed to handlers and guests.
type envStore struct {
	name string
	get  LookupFunc
}

func (i *Instance) addEnvStore(name string, fn LookupFunc) {
	i.envs = append(i.envs, envStore{name, fn})
}

// getEnvStoreHandle resolves a store name to its handle, or
// HandleInvalid if no store by that name is registered.
func (i *Instance) getEnvStoreHandle(name string) int {
	for j, s := range i.envs {
		if s.name == name {
			return j
		}
	}
	return HandleInvalid
}

func (i *Instance) getEnvStore(handle int) LookupFunc {
	if handle < 0 || handle > len(i.envs)-1 {
		return nil
	}
	return i.envs[handle].get
}
