/*
	Copyright NetFoundry Inc.

	Licensed under the Apache License, Version 2.0 (the "License");
	you may not use this file except in compliance with the License.
	You may obtain a copy of the License at

	https://www.apache.org/licenses/LICENSE-2.0

	Unless required by applicable law or agreed to in writing, software
	distributed under the License is distributed on an "AS IS" BASIS,
	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
	See the License for the specific language governing permissions and
	limitations under the License.
*/

package xjapi

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// LoadConfigMap reads a YAML file into the map form the configuration components parse.
// Instance and InstanceConfig assume configuration is acquired from some source and presented
// as a map of interface{}-to-interface{} values; this is the file backed source.
func LoadConfigMap(path string) (map[interface{}]interface{}, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read configuration file [%s]", path)
	}

	return ParseConfigMap(raw)
}

// ParseConfigMap parses raw YAML into a configuration map.
func ParseConfigMap(raw []byte) (map[interface{}]interface{}, error) {
	parsed := map[string]interface{}{}
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, errors.Wrap(err, "could not parse configuration")
	}

	cfgmap, _ := normalizeConfigValue(parsed).(map[interface{}]interface{})
	if cfgmap == nil {
		cfgmap = map[interface{}]interface{}{}
	}

	return cfgmap, nil
}

// normalizeConfigValue rewrites the map[string]interface{} values yaml.v3 decodes into the
// map[interface{}]interface{} shape the Parse methods consume, recursively.
func normalizeConfigValue(value interface{}) interface{} {
	switch typed := value.(type) {
	case map[string]interface{}:
		normalized := make(map[interface{}]interface{}, len(typed))
		for key, val := range typed {
			normalized[key] = normalizeConfigValue(val)
		}
		return normalized
	case map[interface{}]interface{}:
		normalized := make(map[interface{}]interface{}, len(typed))
		for key, val := range typed {
			normalized[key] = normalizeConfigValue(val)
		}
		return normalized
	case []interface{}:
		normalized := make([]interface{}, len(typed))
		for i, val := range typed {
			normalized[i] = normalizeConfigValue(val)
		}
		return normalized
	default:
		return value
	}
}
