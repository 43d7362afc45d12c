package config

// Composite stacks configurations. Later pushes take precedence over earlier ones.
type Composite struct {
	configurations []Configuration
}

func NewComposite(configurations ...Configuration) *Composite {
	c := &Composite{}
	for _, cfg := range configurations {
		c.Push(cfg)
	}
	return c
}

func (c *Composite) Push(cfg Configuration) {
	if cfg == nil {
		return
	}
	c.configurations = append(c.configurations, cfg)
}

func (c *Composite) Bool(key string) (bool, bool) {
	for i := len(c.configurations) - 1; i >= 0; i-- {
		if v, ok := c.configurations[i].Bool(key); ok {
			return v, true
		}
	}
	return false, false
}

func (c *Composite) Int(key string) (int, bool) {
	for i := len(c.configurations) - 1; i >= 0; i-- {
		if v, ok := c.configurations[i].Int(key); ok {
			return v, true
		}
	}
	return 0, false
}

func (c *Composite) String(key string) (string, bool) {
	for i := len(c.configurations) - 1; i >= 0; i-- {
		if v, ok := c.configurations[i].String(key); ok {
			return v, true
		}
	}
	return "", false
}
