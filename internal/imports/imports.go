// Copyright (c) 2020 Doc.ai and/or its affiliates.
//
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at:
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package imports used for priming Docker builds to maximize layer caching
package imports

import (
	_ "bytes" // we need it
	_ "context"
	_ "fmt"
	_ "io/ioutil"
	_ "os"
	_ "os/signal"
	_ "path/filepath"
	_ "regexp"
	_ "strconv"
	_ "testing"
	_ "time"

	_ "github.com/antonfisher/nested-logrus-formatter" // we need it
	_ "github.com/ghodss/yaml"
	_ "github.com/kelseyhightower/envconfig"
	_ "github.com/networkservicemesh/sdk/pkg/tools/debug"
	_ "github.com/networkservicemesh/sdk/pkg/tools/log"
	_ "github.com/networkservicemesh/sdk/pkg/tools/log/logruslogger"
	_ "github.com/pkg/errors"
	_ "github.com/sirupsen/logrus"
	_ "github.com/spf13/cobra"
	_ "github.com/stretchr/testify/assert"
	_ "github.com/stretchr/testify/mock"
	_ "github.com/stretchr/testify/require"
	_ "github.com/stretchr/testify/suite"
	_ "go.uber.org/multierr"
	_ "gopkg.in/yaml.v3"
)
